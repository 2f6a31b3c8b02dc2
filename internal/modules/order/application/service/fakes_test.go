package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"OrderPulse/internal/modules/order/domain/entity"
	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/internal/modules/order/infrastructure/mq"

	"gorm.io/gorm"
)

type memRepo struct {
	mu     sync.Mutex
	orders map[string]*entity.Order
	err    error
}

func newMemRepo(orders ...*entity.Order) *memRepo {
	r := &memRepo{orders: make(map[string]*entity.Order)}
	for _, o := range orders {
		r.orders[o.Uuid] = o
	}
	return r
}

func (r *memRepo) Create(_ context.Context, o *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *o
	r.orders[o.Uuid] = &cp
	return nil
}

func (r *memRepo) GetByUUID(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) ListByCustomer(_ context.Context, customerID string, _ int) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Order
	for _, o := range r.orders {
		if o.CustomerId == customerID {
			out = append(out, *o)
		}
	}
	return out, r.err
}

func (r *memRepo) UpdateStatus(_ context.Context, id, status string, at time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	prev := o.Status
	o.Status = status
	o.UpdatedAt = at
	return prev, nil
}

func (r *memRepo) CountStats(_ context.Context, since time.Time) (*repository.OrderStatsCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c repository.OrderStatsCount
	for _, o := range r.orders {
		c.Total++
		switch {
		case o.Status == entity.StatusPending:
			c.New++
		case o.Status == entity.StatusDelivered:
			c.Completed++
		default:
			for _, s := range entity.InProgressStatuses {
				if o.Status == s {
					c.InProgress++
				}
			}
		}
		if !o.CreatedAt.Before(since) {
			c.Today++
		}
	}
	return &c, nil
}

type publishLog struct {
	mu   sync.Mutex
	msgs []mq.Message
	err  error
}

func (p *publishLog) Publish(_ context.Context, m mq.Message) (mq.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return mq.PublishResult{Offset: int64(len(p.msgs))}, p.err
}

func (p *publishLog) Close() error { return nil }

func (p *publishLog) changes() []entity.OrderChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.OrderChange, 0, len(p.msgs))
	for _, m := range p.msgs {
		var c entity.OrderChange
		_ = json.Unmarshal(m.Value, &c)
		out = append(out, c)
	}
	return out
}

type emitted struct {
	Room  string
	Event string
	Data  map[string]interface{}
}

type emitLog struct {
	mu  sync.Mutex
	out []emitted
}

func (e *emitLog) EmitToRoom(room, event string, data interface{}) (int, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	e.mu.Lock()
	e.out = append(e.out, emitted{Room: room, Event: event, Data: m})
	e.mu.Unlock()
	return 1, nil
}

func (e *emitLog) all() []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emitted(nil), e.out...)
}

func (e *emitLog) routes() []string {
	var out []string
	for _, x := range e.all() {
		out = append(out, x.Event+"@"+x.Room)
	}
	return out
}
