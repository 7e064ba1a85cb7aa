package notify

import (
	"context"
	"errors"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Relay переносит строки outbox во внешний брокер. Строка помечается SENT
// только после успешной публикации; после MaxAttempts неудач: FAILED.
type Relay struct {
	repo repository.NotificationRepo
	pub  Publisher
	log  *zap.Logger

	interval    time.Duration
	batch       int
	maxAttempts int
	newBackOff  func() backoff.BackOff
	now         func() time.Time
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption { return func(r *Relay) { r.interval = d } }
func WithBatch(n int) RelayOption              { return func(r *Relay) { r.batch = n } }
func WithMaxAttempts(n int) RelayOption        { return func(r *Relay) { r.maxAttempts = n } }
func WithBackOff(f func() backoff.BackOff) RelayOption {
	return func(r *Relay) { r.newBackOff = f }
}

func NewRelay(repo repository.NotificationRepo, pub Publisher, log *zap.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		repo:        repo,
		pub:         pub,
		log:         log,
		interval:    time.Second,
		batch:       50,
		maxAttempts: 5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 3 * time.Second
			return backoff.WithMaxRetries(b, 2)
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run крутится до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("starting notification relay", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("notification relay pass failed", zap.Error(err))
			}
		case <-ctx.Done():
			r.log.Info("notification relay stopped")
			return
		}
	}
}

// RunOnce отправляет одну пачку и возвращает число отправленных.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ListPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range pending {
		n := &pending[i]
		env := envelopeOf(n)

		pubErr := r.publish(ctx, env)
		if pubErr == nil {
			if err := r.repo.MarkSent(ctx, n.ID, r.now().UTC()); err != nil {
				return sent, err
			}
			sent++
			continue
		}

		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		final := n.Attempts+1 >= r.maxAttempts
		r.log.Warn("notification publish failed",
			zap.String("id", n.ID.String()),
			zap.String("type", n.Type),
			zap.Int("attempt", n.Attempts+1),
			zap.Bool("final", final),
			zap.Error(pubErr))
		if err := r.repo.MarkAttemptFailed(ctx, n.ID, pubErr.Error(), final); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (r *Relay) publish(ctx context.Context, env Envelope) error {
	ctx, span := otel.Tracer("pharmacy/notify").Start(ctx, "notify.Publish "+env.Type,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("notification.id", env.ID),
			attribute.Int("notification.recipients", len(env.UserIDs)),
		))
	defer span.End()

	op := func() error { return r.pub.Publish(ctx, env) }
	err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
