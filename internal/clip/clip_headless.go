package clip

import "context"

// headless is used when no display server or paste helper is available
// (headless servers, containers, CI).
type headless struct{}

func (headless) Name() string                              { return "headless (no-op)" }
func (headless) ReadText(context.Context) (string, error) { return "", ErrUnavailable }
