// Package notify delivers best-effort push notifications after a commit
// succeeds. Nothing in this package may affect the commit outcome: every
// failure is logged and swallowed.
package notify

import "context"

// Notifier delivers a human-readable execution summary. Implementations
// never return an error and never panic past their boundary.
type Notifier interface {
	Notify(ctx context.Context, summary string)
}

// TokenSource looks up the single registered delivery token.
type TokenSource interface {
	PushToken(ctx context.Context) (string, error)
}

// Nop is the notifier used when push delivery is disabled.
type Nop struct{}

func (Nop) Notify(ctx context.Context, summary string) {}

// Fake records summaries for test assertions.
type Fake struct {
	Summaries []string
}

func (f *Fake) Notify(ctx context.Context, summary string) {
	f.Summaries = append(f.Summaries, summary)
}
