// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package orders

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/idgen"
	"github.com/orderdesk/orderdesk/internal/validate"
)

// Operation is the route-gate operation every order call is checked against.
const Operation = "/orders"

// Service is the in-memory order store. It is safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	orders map[ulid.ULID]*Order
	seq    []ulid.ULID // creation order

	access   *access.Engine
	recorder audit.Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an empty order store.
func NewService(engine *access.Engine, recorder audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if engine == nil {
		return nil, oops.Code("ORDER_INVALID_CONFIG").Errorf("access engine is required")
	}
	if recorder == nil {
		return nil, oops.Code("ORDER_INVALID_CONFIG").Errorf("audit recorder is required")
	}
	s := &Service{
		orders:   make(map[ulid.ULID]*Order),
		access:   engine,
		recorder: recorder,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates in and stores a pending order owned by actor.
func (s *Service) Create(ctx context.Context, actor access.Actor, in Input) (Order, error) {
	description, err := normalizeInput(in.Description, in.Quantity)
	if err != nil {
		s.auditFailure(ctx, audit.ActionOrderValidation, actor, validate.Message(err))
		return Order{}, err
	}
	if r := s.access.AuthorizeRoute(actor, Operation); !r.Allowed() {
		s.auditFailure(ctx, audit.ActionForbidden, actor, Operation)
		return Order{}, oops.Code("ACCESS_FORBIDDEN").With("rule", r.Rule).Wrap(access.ErrForbidden)
	}

	now := s.now()
	order := &Order{
		ID:          idgen.At(now),
		OwnerID:     actor.ID,
		Description: description,
		Quantity:    int(in.Quantity),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.seq = append(s.seq, order.ID)
	out := *order
	stored := len(s.orders)
	s.mu.Unlock()
	ordersGauge.Set(float64(stored))

	mutationsCounter.WithLabelValues("create").Inc()
	s.recorder.Record(ctx, audit.Event{
		Action:  audit.ActionOrderCreate,
		Outcome: audit.OutcomeSuccess,
		UserID:  actor.ID,
		Detail:  out.ID.String(),
	})
	return out, nil
}

// List returns the orders actor may see, oldest first. Admins and managers
// see every order; customers only their own.
func (s *Service) List(ctx context.Context, actor access.Actor) []Order {
	if r := s.access.AuthorizeRoute(actor, Operation); !r.Allowed() {
		s.auditFailure(ctx, audit.ActionForbidden, actor, Operation)
		return []Order{}
	}

	s.mu.RLock()
	all := make([]Order, 0, len(s.seq))
	for _, id := range s.seq {
		all = append(all, *s.orders[id])
	}
	s.mu.RUnlock()

	return access.FilterVisible(actor, all, func(o Order) ulid.ULID { return o.OwnerID })
}

// Get returns a single order if actor may see it. A denial is audited.
func (s *Service) Get(ctx context.Context, actor access.Actor, id ulid.ULID) (Order, error) {
	s.mu.RLock()
	order, ok := s.orders[id]
	var out Order
	if ok {
		out = *order
	}
	s.mu.RUnlock()

	if !ok {
		return Order{}, oops.Code("ORDER_NOT_FOUND").With("order_id", id.String()).Wrap(ErrNotFound)
	}
	if r := s.access.AuthorizeView(actor, Operation, out.OwnerID); !r.Allowed() {
		s.auditFailure(ctx, audit.ActionForbidden, actor, id.String())
		return Order{}, oops.Code("ORDER_FORBIDDEN").With("order_id", id.String()).Wrap(ErrForbidden)
	}
	return out, nil
}

// Update validates upd and applies it if actor may mutate the order. A
// missing order and a denial are both audited as access.order.update.
func (s *Service) Update(ctx context.Context, actor access.Actor, id ulid.ULID, upd Update) (Order, error) {
	description, err := normalizeInput(upd.Description, upd.Quantity)
	if err != nil {
		s.auditFailure(ctx, audit.ActionOrderValidation, actor, validate.Message(err))
		return Order{}, err
	}
	status := StatusPending
	if upd.Status != "" {
		if status, err = ParseStatus(string(upd.Status)); err != nil {
			s.auditFailure(ctx, audit.ActionOrderValidation, actor, MsgInvalidStatus)
			return Order{}, err
		}
	}

	s.mu.Lock()
	order, ok := s.orders[id]
	var denied access.Result
	if ok {
		denied = s.access.Authorize(actor, Operation, order.OwnerID)
	}
	var out Order
	if ok && denied.Allowed() {
		order.Description = description
		order.Quantity = int(upd.Quantity)
		order.Status = status
		order.UpdatedAt = s.now()
		out = *order
	}
	s.mu.Unlock()

	if !ok {
		s.auditFailure(ctx, audit.ActionOrderUpdateDenied, actor, id.String())
		return Order{}, oops.Code("ORDER_NOT_FOUND").With("order_id", id.String()).Wrap(ErrNotFound)
	}
	if !denied.Allowed() {
		s.auditFailure(ctx, audit.ActionOrderUpdateDenied, actor, id.String())
		return Order{}, oops.Code("ORDER_FORBIDDEN").With("order_id", id.String()).With("layer", string(denied.Layer)).Wrap(ErrForbidden)
	}

	mutationsCounter.WithLabelValues("update").Inc()
	s.recorder.Record(ctx, audit.Event{
		Action:  audit.ActionOrderUpdate,
		Outcome: audit.OutcomeSuccess,
		UserID:  actor.ID,
		Detail:  id.String(),
	})
	return out, nil
}

// Delete removes the order if actor may mutate it. A missing order and a
// denial are both audited as access.order.delete.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id ulid.ULID) error {
	s.mu.Lock()
	order, ok := s.orders[id]
	var decision access.Result
	stored := len(s.orders)
	if ok {
		decision = s.access.Authorize(actor, Operation, order.OwnerID)
		if decision.Allowed() {
			delete(s.orders, id)
			s.seq = slices.DeleteFunc(s.seq, func(x ulid.ULID) bool { return x == id })
			stored = len(s.orders)
		}
	}
	s.mu.Unlock()
	ordersGauge.Set(float64(stored))

	if !ok {
		s.auditFailure(ctx, audit.ActionOrderDeleteDenied, actor, id.String())
		return oops.Code("ORDER_NOT_FOUND").With("order_id", id.String()).Wrap(ErrNotFound)
	}
	if !decision.Allowed() {
		s.auditFailure(ctx, audit.ActionOrderDeleteDenied, actor, id.String())
		return oops.Code("ORDER_FORBIDDEN").With("order_id", id.String()).With("layer", string(decision.Layer)).Wrap(ErrForbidden)
	}

	mutationsCounter.WithLabelValues("delete").Inc()
	s.recorder.Record(ctx, audit.Event{
		Action:  audit.ActionOrderDelete,
		Outcome: audit.OutcomeSuccess,
		UserID:  actor.ID,
		Detail:  id.String(),
	})
	return nil
}

// Count returns the number of stored orders.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Service) auditFailure(ctx context.Context, action string, actor access.Actor, detail string) {
	s.recorder.Record(ctx, audit.Event{
		Action:  action,
		Outcome: audit.OutcomeFailure,
		UserID:  actor.ID,
		Detail:  detail,
	})
	s.logger.DebugContext(ctx, "order operation refused", "action", action, "actor", actor.ID.String(), "detail", detail)
}
