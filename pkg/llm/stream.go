package llm

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// Stream is a lazy, single-pass sequence of completion chunks. Chunks are
// never replayed: once the underlying source reports the end, the stream
// collapses into a Response and any further consumption fails with
// ErrStreamCompleted.
type Stream struct {
	recv  func() (*Chunk, error)
	close func() error

	text       strings.Builder
	last       *Chunk
	usage      *Usage
	finish     FinishReason
	metadata   map[string]any
	resp       *Response
	err        error
	closed     bool
	onComplete []func(*Response)
}

// NewStream wraps a chunk source. recv must return io.EOF after the last
// chunk. closer may be nil.
func NewStream(recv func() (*Chunk, error), closer func() error) *Stream {
	return &Stream{recv: recv, close: closer}
}

// Chunks yields the remaining chunks in order. Breaking out of the loop
// leaves the stream open so a later call continues with the next chunk.
func (s *Stream) Chunks() iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		if s.resp != nil {
			yield(nil, ErrStreamCompleted)
			return
		}
		if s.err != nil {
			yield(nil, s.err)
			return
		}

		for {
			chunk, err := s.recv()
			if errors.Is(err, io.EOF) {
				s.complete()
				return
			}
			if err != nil {
				s.err = err
				s.release()
				yield(nil, err)
				return
			}

			s.accumulate(chunk)
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Collect drains the remaining chunks and returns the collapsed response.
func (s *Stream) Collect() (*Response, error) {
	if s.resp != nil {
		return nil, ErrStreamCompleted
	}
	for _, err := range s.Chunks() {
		if err != nil {
			return nil, err
		}
	}
	if s.resp == nil {
		return nil, errors.New("stream ended without completing")
	}
	return s.resp, nil
}

// Response returns the collapsed response, or nil while the stream has not
// been fully consumed.
func (s *Stream) Response() *Response {
	return s.resp
}

// Done reports whether the stream has been fully consumed.
func (s *Stream) Done() bool {
	return s.resp != nil
}

// OnComplete registers fn to run once with the collapsed response.
func (s *Stream) OnComplete(fn func(*Response)) {
	if s.resp != nil {
		fn(s.resp)
		return
	}
	s.onComplete = append(s.onComplete, fn)
}

// Close releases the underlying connection. It is safe to call more than
// once.
func (s *Stream) Close() error {
	return s.release()
}

func (s *Stream) release() error {
	if s.closed || s.close == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.close()
}

func (s *Stream) accumulate(c *Chunk) {
	s.last = c
	if len(c.Choices) > 0 {
		s.text.WriteString(c.Choices[0].Delta.Content)
		if c.Choices[0].FinishReason != "" {
			s.finish = c.Choices[0].FinishReason
		}
	}
	if c.Usage != nil {
		s.usage = c.Usage
	}
	for k, v := range c.Metadata {
		if s.metadata == nil {
			s.metadata = make(map[string]any)
		}
		s.metadata[k] = v
	}
}

func (s *Stream) complete() {
	s.release()

	resp := &Response{
		Object: "chat.completion",
		Choices: []Choice{{
			Index:        0,
			FinishReason: s.finish,
			Message:      AssistantMessage(s.text.String()),
		}},
		Usage:    s.usage,
		Metadata: s.metadata,
	}
	if s.last != nil {
		resp.ID = s.last.ID
		resp.Created = s.last.Created
		resp.Model = s.last.Model
		resp.SystemFingerprint = s.last.SystemFingerprint
	}
	s.resp = resp

	for _, fn := range s.onComplete {
		fn(resp)
	}
	s.onComplete = nil
}
