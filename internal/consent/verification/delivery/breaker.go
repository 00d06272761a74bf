package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"consentd/pkg/platform/circuit"
	"consentd/pkg/platform/sentinel"
)

// BreakerSender fails fast while the gateway is known to be down instead of
// holding each request for the full delivery timeout.
type BreakerSender struct {
	next    Sender
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerSender(next Sender, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerSender{next: next, breaker: breaker, logger: logger}
}

func (s *BreakerSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("%s circuit open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}

	err := s.next.Send(ctx, msg)
	if err != nil {
		if change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "delivery circuit opened",
				"circuit", s.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "delivery circuit closed", "circuit", s.breaker.Name())
	}
	return nil
}
