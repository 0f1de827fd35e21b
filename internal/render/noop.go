package render

import "context"

// Noop is the renderer used when --no-render is set; every escalation
// fails fast with ErrDisabled and the job reports a terminal failure.
type Noop struct{}

// Render always returns ErrDisabled.
func (Noop) Render(context.Context, string) (string, error) {
	return "", ErrDisabled
}
