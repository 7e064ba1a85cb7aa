package events

import (
	"context"
	"sync"
)

// Recorder запоминает каждое опубликованное событие. Если задан inner,
// событие дальше уходит в него (подписки тоже регистрируются там).
type Recorder struct {
	mu     sync.Mutex
	events []Event
	inner  Bus
}

func NewRecorder(inner Bus) *Recorder {
	return &Recorder{inner: inner}
}

func (r *Recorder) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	if r.inner == nil {
		return nil
	}
	return r.inner.Publish(ctx, e)
}

func (r *Recorder) Subscribe(t Type, h Handler) {
	if r.inner != nil {
		r.inner.Subscribe(t, h)
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
