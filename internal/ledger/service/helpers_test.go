package service

import (
	"context"
	"sync"

	"aidtrace/internal/events"
	"aidtrace/internal/ledger/store"
)

// memoryTx adapts store.Memory to StoreTx. wrap, when set, decorates the
// transaction-bound store.
type memoryTx struct {
	mem  *store.Memory
	wrap func(Store) Store
}

func (t memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	return t.mem.RunInTx(ctx, func(ctx context.Context, l store.Ledger) error {
		var st Store = l
		if t.wrap != nil {
			st = t.wrap(st)
		}
		return fn(ctx, st)
	})
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evts ...events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
}

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *capturePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
