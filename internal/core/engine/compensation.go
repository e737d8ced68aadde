package engine

import (
	"context"
	"log/slog"
)

// compensation is the undo action for one completed pipeline stage.
type compensation struct {
	// resource names what the action removes, in operator-readable form
	// ("systemd unit wam-app-example-com", "site config for app.example.com").
	resource string
	fn       func(ctx context.Context) error
}

// compensationStack accumulates undo actions as stages complete. On failure
// the stack unwinds in strict reverse order; each action is best-effort and a
// failing one never stops the rest. Modelling rollback as an explicit stack
// keeps the sequence inspectable and testable outside the error path.
type compensationStack struct {
	items  []compensation
	logger *slog.Logger
}

func newCompensationStack(logger *slog.Logger) *compensationStack {
	return &compensationStack{logger: logger}
}

// push registers the undo action for a stage that just completed.
func (s *compensationStack) push(resource string, fn func(ctx context.Context) error) {
	s.items = append(s.items, compensation{resource: resource, fn: fn})
}

// unwind runs every registered compensation in reverse order and returns the
// resources that could not be removed, paired with their errors.
func (s *compensationStack) unwind(ctx context.Context) (leftovers []string, errs []error) {
	for i := len(s.items) - 1; i >= 0; i-- {
		c := s.items[i]
		s.logger.Info("rolling back", slog.String("resource", c.resource))
		if err := c.fn(ctx); err != nil {
			s.logger.Error("compensation failed",
				slog.String("resource", c.resource), slog.Any("error", err))
			leftovers = append(leftovers, c.resource)
			errs = append(errs, err)
		}
	}
	return leftovers, errs
}

// size reports how many compensations are registered; used by tests to assert
// stage accounting.
func (s *compensationStack) size() int { return len(s.items) }
