package hook

import (
	"context"
	"sort"
	"sync"
)

// Manager dispatches events to registered handlers.
type Manager struct {
	handlers map[Point][]Handler
	mu       sync.RWMutex
}

func NewManager(handlers ...Handler) *Manager {
	m := &Manager{
		handlers: make(map[Point][]Handler),
	}
	for _, h := range handlers {
		m.Register(h)
	}
	return m
}

func (m *Manager) Register(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, point := range handler.Points() {
		hs := append(m.handlers[point], handler)
		sort.SliceStable(hs, func(i, j int) bool {
			return hs[i].Priority() > hs[j].Priority()
		})
		m.handlers[point] = hs
	}
}

// Trigger runs the handlers for ev.Point in priority order and stops at the
// first denial. A nil Manager allows everything.
func (m *Manager) Trigger(ctx context.Context, ev *Event) (*Feedback, error) {
	if m == nil {
		return Allow(), nil
	}

	m.mu.RLock()
	handlers := m.handlers[ev.Point]
	m.mu.RUnlock()

	for _, handler := range handlers {
		feedback, err := handler.Handle(ctx, ev)
		if err != nil {
			return nil, err
		}
		if feedback != nil && !feedback.Allow {
			return feedback, nil
		}
	}

	return Allow(), nil
}

func (m *Manager) HasHandlers(point Point) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[point]) > 0
}

// ListHandlers returns handler names for a hook point in run order.
func (m *Manager) ListHandlers(point Point) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handlers := m.handlers[point]
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}
