package retention

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	svc      *Service
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(svc *Service, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		svc:      svc,
		log:      log,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает очистку в фоне; первый проход: сразу.
// Повторный Start и Start после Stop ничего не делают.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.log.Info("starting retention scheduler", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop останавливает планировщик и ждёт завершения текущего прохода.
// Без Start возвращается сразу.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("stopping retention scheduler")
		s.mu.Lock()
		s.stopped = true
		if !s.started {
			close(s.done)
		}
		s.mu.Unlock()
		close(s.stopCh)
	})
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.RunOnceNow(ctx); err != nil {
		s.log.Error("initial retention pass failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnceNow(ctx); err != nil {
				s.log.Error("retention pass failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("retention scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("retention scheduler cancelled")
			return
		}
	}
}

func (s *Scheduler) RunOnceNow(ctx context.Context) (int64, error) {
	return s.svc.PurgePrescriptionAudit(ctx, s.now())
}
