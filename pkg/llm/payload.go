package llm

// Params holds sampling parameters. Nil fields are left to the provider's
// defaults.
type Params struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
	Seed        *int
	// JSONMode asks the provider for a JSON object response. It cannot be
	// combined with streaming.
	JSONMode bool
	// Extra carries provider-specific request fields. Each provider
	// documents the keys it sends; unknown keys are ignored.
	Extra map[string]any
}

// Merge returns a copy of p with every field set in override applied on top.
func (p Params) Merge(override Params) Params {
	out := p
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.Stop != nil {
		out.Stop = override.Stop
	}
	if override.Seed != nil {
		out.Seed = override.Seed
	}
	if override.JSONMode {
		out.JSONMode = true
	}
	if len(p.Extra) > 0 || len(override.Extra) > 0 {
		out.Extra = make(map[string]any, len(p.Extra)+len(override.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
		for k, v := range override.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Option mutates Params. Options are used for per-call sampling overrides.
type Option func(*Params)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Params) { p.Temperature = &t }
}

// WithMaxTokens limits the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(p *Params) { p.MaxTokens = &n }
}

// WithTopP sets nucleus sampling.
func WithTopP(v float64) Option {
	return func(p *Params) { p.TopP = &v }
}

// WithStop sets stop sequences.
func WithStop(stop ...string) Option {
	return func(p *Params) { p.Stop = stop }
}

// WithSeed sets the sampling seed.
func WithSeed(seed int) Option {
	return func(p *Params) { p.Seed = &seed }
}

// WithJSONMode requests a JSON object response.
func WithJSONMode() Option {
	return func(p *Params) { p.JSONMode = true }
}

// WithExtra sets a provider-specific request field.
func WithExtra(key string, value any) Option {
	return func(p *Params) {
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[key] = value
	}
}

// NewParams applies opts to an empty Params.
func NewParams(opts ...Option) Params {
	var p Params
	for _, o := range opts {
		o(&p)
	}
	return p
}

// Payload is a single completion request.
type Payload struct {
	// Model overrides the sender's configured model when non-empty.
	Model    string
	Messages []Message
	Stream   bool
	Params
}

// Clone returns a copy whose Messages slice can be modified independently.
func (p *Payload) Clone() *Payload {
	out := *p
	out.Messages = append([]Message(nil), p.Messages...)
	return &out
}
