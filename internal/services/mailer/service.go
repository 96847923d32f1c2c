package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/logging"
)

// Service delivers mail in the background with retries, so HTTP handlers
// never wait on the SMTP relay.
type Service struct {
	sender      Sender
	retryDelays []time.Duration
	shutdownCh  chan struct{} // Signals pending deliveries to stop
	once        sync.Once
	wg          sync.WaitGroup
}

// NewService wraps a sender. Deliveries are tried up to three times,
// waiting 1s and then 5s between attempts.
func NewService(sender Sender) *Service {
	return &Service{
		sender:      sender,
		retryDelays: []time.Duration{0, time.Second, 5 * time.Second},
		shutdownCh:  make(chan struct{}),
	}
}

// Deliver queues msg for background delivery.
func (s *Service) Deliver(msg Message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliverWithRetry(msg)
	}()
}

// Shutdown aborts pending retries and waits for in-flight sends.
func (s *Service) Shutdown() {
	s.once.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

func (s *Service) deliverWithRetry(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for attempt, delay := range s.retryDelays {
		if attempt > 0 {
			// Wait for the retry delay, but respect shutdown signals
			select {
			case <-s.shutdownCh:
				logging.Warn("⚠️  Email delivery aborted due to shutdown", "to", msg.To)
				return
			case <-ctx.Done():
				logging.Warn("⚠️  Email delivery timed out", "to", msg.To)
				return
			case <-time.After(delay):
			}
		}

		err := s.sender.Send(ctx, msg)
		if err == nil {
			logging.Info("✅ Email delivered", "to", msg.To, "attempt", attempt+1)
			return
		}
		logging.Warn("⚠️  Email delivery failed", "to", msg.To,
			"attempt", attempt+1, "max_attempts", len(s.retryDelays), "error", err)
	}

	logging.Error("❌ Email delivery failed permanently", "to", msg.To)
}
