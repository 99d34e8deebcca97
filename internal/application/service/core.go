package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/sangkips/bursar-api/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Core is what every billing service shares: storage, the lock manager, the
// clock and the billing settings.
type Core struct {
	Repos    *repository.Registry
	Locks    *lock.Manager
	Clock    Clock
	Log      *zap.Logger
	Billing  config.BillingConfig
	validate *validation.Validator
	loc      *time.Location
}

// NewCore wires the shared dependencies of the billing services.
func NewCore(repos *repository.Registry, locks *lock.Manager, clock Clock, log *zap.Logger, cfg config.BillingConfig) *Core {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SequenceWidth <= 0 {
		cfg.SequenceWidth = 6
	}
	return &Core{
		Repos:    repos,
		Locks:    locks,
		Clock:    clock,
		Log:      log,
		Billing:  cfg,
		validate: validation.Default(),
		loc:      cfg.Location(),
	}
}

// today is the current business date in the billing timezone.
func (c *Core) today() time.Time {
	return billing.Day(c.Clock.Now(), c.loc)
}

// day normalises a caller supplied date the same way.
func (c *Core) day(t time.Time) time.Time {
	return billing.Day(t, c.loc)
}

func actorFrom(ctx context.Context) (tenancy.Actor, error) {
	a, ok := tenancy.FromContext(ctx)
	if !ok {
		return tenancy.Actor{}, apperror.NewBadRequestError("Tenant context required")
	}
	return a, nil
}

func sameTenant(a tenancy.Actor, tenantID uuid.UUID) error {
	if a.TenantID != tenantID {
		return apperror.New(apperror.ErrCrossTenantAccess, "Resource belongs to another tenant")
	}
	return nil
}

// check turns a missing or foreign row into the matching error.
func check[T any](a tenancy.Actor, row *T, tenantID func(*T) uuid.UUID, resource string) (*T, error) {
	if row == nil {
		return nil, apperror.NewNotFoundError(resource)
	}
	if err := sameTenant(a, tenantID(row)); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Core) loadInvoice(ctx context.Context, a tenancy.Actor, id uuid.UUID) (*entity.Invoice, error) {
	inv, err := c.Repos.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(a, inv, func(i *entity.Invoice) uuid.UUID { return i.TenantID }, "Invoice")
}

func (c *Core) loadPayment(ctx context.Context, a tenancy.Actor, id uuid.UUID) (*entity.Payment, error) {
	p, err := c.Repos.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(a, p, func(p *entity.Payment) uuid.UUID { return p.TenantID }, "Payment")
}

func (c *Core) loadPlan(ctx context.Context, a tenancy.Actor, id uuid.UUID) (*entity.PaymentPlan, error) {
	plan, err := c.Repos.Plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(a, plan, func(p *entity.PaymentPlan) uuid.UUID { return p.TenantID }, "Payment plan")
}

func (c *Core) loadRefund(ctx context.Context, a tenancy.Actor, id uuid.UUID) (*entity.Refund, error) {
	r, err := c.Repos.Refunds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return check(a, r, func(r *entity.Refund) uuid.UUID { return r.TenantID }, "Refund")
}

// guarded runs fn holding the given lock keys inside one transaction. Lock
// timeouts and database concurrency failures are retried a bounded number of
// times before the caller sees a ConcurrencyError.
func (c *Core) guarded(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	attempts := c.Billing.LockRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.once(ctx, keys, fn)
		if err == nil || !retryable(err) {
			return err
		}
		c.Log.Debug("retrying after contention", zap.Int("attempt", attempt), zap.Strings("keys", keys), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return apperror.New(apperror.ErrConcurrency, "Resource is busy, please retry")
}

func (c *Core) once(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	release, err := c.Locks.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return c.Repos.Tx.WithinTransaction(ctx, fn)
}

func retryable(err error) bool {
	return errors.Is(err, lock.ErrTimeout) || apperror.IsKind(err, apperror.KindConcurrency)
}

// record writes a domain event to the outbox in the caller's transaction.
func (c *Core) record(ctx context.Context, tenantID uuid.UUID, typ enum.EventType, aggregate string, aggregateID uuid.UUID, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := &entity.DomainEvent{
		TenantID:      tenantID,
		Type:          typ,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Payload:       datatypes.JSON(raw),
	}
	if err := c.Repos.Events.Create(ctx, event); err != nil {
		return err
	}
	c.Log.Info("domain event",
		zap.String("type", string(typ)),
		zap.String("tenant_id", tenantID.String()),
		zap.String(aggregate+"_id", aggregateID.String()),
	)
	return nil
}

// page returns p or the default pagination.
func page(p *pagination.PaginationParams) *pagination.PaginationParams {
	if p == nil {
		return pagination.DefaultPagination()
	}
	return p
}
