package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	defaultWorkers = 2
	defaultBuffer  = 256
)

// Service fans messages out to a Sender from a bounded queue. Dispatch is
// non-blocking; when the queue is full the message is dropped and logged.
// Notices are conveniences, not records, so losing one under load is
// preferable to applying backpressure to the request path.
type Service struct {
	sender  Sender
	logger  *slog.Logger
	queue   chan Message
	workers int

	startOnce sync.Once
	mu        sync.RWMutex
	stopped   bool
	wg        sync.WaitGroup
}

type Option func(*Service)

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan Message, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(sender Sender, opts ...Option) *Service {
	s := &Service{
		sender:  sender,
		logger:  slog.Default(),
		queue:   make(chan Message, defaultBuffer),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the delivery workers. Safe to call once; subsequent calls
// are no-ops.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.worker(ctx)
		}
	})
}

// Dispatch enqueues a message without blocking. Returns false when the
// message was dropped because the queue was full or the service stopped.
func (s *Service) Dispatch(ctx context.Context, msg Message) bool {
	// The read lock keeps Stop from closing the queue mid-send.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return false
	}

	select {
	case s.queue <- msg:
		return true
	default:
		s.logger.WarnContext(ctx, "notification queue full, dropping message",
			"recipient_id", msg.RecipientID,
			"template_key", msg.TemplateKey)
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for msg := range s.queue {
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "notification delivery failed",
				"recipient_id", msg.RecipientID,
				"template_key", msg.TemplateKey,
				"error", err)
		}
	}
}
