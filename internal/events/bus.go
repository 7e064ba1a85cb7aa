package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// MaxChainDepth: сколько уровней вложенных Publish допускается от одного исходного вызова.
const MaxChainDepth = 10

var ErrChainTooDeep = errors.New("event chain too deep")

type Handler func(ctx context.Context, e Event) error

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(t Type, h Handler)
}

type depthKey struct{}

func depthFrom(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// SyncBus доставляет событие синхронно, в порядке подписки. Ошибка или паника
// одного обработчика не мешает следующим.
type SyncBus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	log      *zap.Logger
}

func NewSyncBus(log *zap.Logger) *SyncBus {
	return &SyncBus{
		handlers: make(map[Type][]Handler),
		log:      log,
	}
}

func (b *SyncBus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish возвращает ErrChainTooDeep, если цепочка превысила лимит (в том числе
// во вложенных публикациях обработчиков). Прочие ошибки обработчиков только логируются.
func (b *SyncBus) Publish(ctx context.Context, e Event) error {
	depth := depthFrom(ctx)
	if depth >= MaxChainDepth {
		b.log.DPanic("event chain depth exceeded",
			zap.String("event", string(e.Type)),
			zap.Int("depth", depth))
		return ErrChainTooDeep
	}

	ctx, span := otel.Tracer("pharmacy/events").Start(ctx, "events.Publish "+string(e.Type))
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(e.Type)),
		attribute.Int("event.depth", depth),
	)

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	hctx := context.WithValue(ctx, depthKey{}, depth+1)
	var chainErr error
	for i, h := range handlers {
		err := b.invoke(hctx, h, e)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrChainTooDeep) {
			chainErr = ErrChainTooDeep
		}
		span.RecordError(err)
		b.log.Error("event handler failed",
			zap.String("event", string(e.Type)),
			zap.Int("handler", i),
			zap.Error(err))
	}
	if chainErr != nil {
		span.SetStatus(codes.Error, chainErr.Error())
	}
	return chainErr
}

func (b *SyncBus) invoke(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}
