package service

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxSummaryDays bounds a single rebuild.
const maxSummaryDays = 731

// SummaryService maintains the reporting rollups. Nothing in the billing core
// reads them back.
type SummaryService struct {
	*Core
}

// NewSummaryService creates a new summary service
func NewSummaryService(core *Core) *SummaryService {
	return &SummaryService{Core: core}
}

// SummaryRange selects summary rows
type SummaryRange struct {
	PeriodType enum.SummaryPeriod `validate:"required"`
	From       time.Time
	To         time.Time
}

// RebuildReport counts what a rebuild wrote
type RebuildReport struct {
	Tenants int   `json:"tenants"`
	Rows    int64 `json:"rows"`
}

// normalise checks the range and widens monthly ranges to whole months.
func (s *SummaryService) normalise(r *SummaryRange) (time.Time, time.Time, error) {
	if err := s.validate.Struct(r); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !r.PeriodType.IsValid() {
		return time.Time{}, time.Time{}, apperror.NewFieldError("period_type", "period_type must be daily or monthly")
	}
	if r.From.IsZero() || r.To.IsZero() {
		return time.Time{}, time.Time{}, apperror.NewFieldError("from", "from and to are required")
	}
	from, to := s.day(r.From), s.day(r.To)
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperror.NewFieldError("to", "to must not be before from")
	}
	if r.PeriodType == enum.SummaryMonthly {
		from = time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(to.Year(), to.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	}
	if billing.DaysBetween(from, to) > maxSummaryDays {
		return time.Time{}, time.Time{}, apperror.NewFieldError("to", "range must not exceed two years")
	}
	return from, to, nil
}

// bucket maps a date onto the period row it belongs to.
func bucket(periodType enum.SummaryPeriod, d time.Time) time.Time {
	if periodType == enum.SummaryMonthly {
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Rebuild recomputes the caller tenant's summaries for the range from invoices,
// payments and refunds, replacing whatever rows were there.
func (s *SummaryService) Rebuild(ctx context.Context, r *SummaryRange) ([]entity.FinancialSummary, error) {
	from, to, err := s.normalise(r)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.rebuild(ctx, actor.TenantID, r.PeriodType, from, to)
}

func (s *SummaryService) rebuild(ctx context.Context, tenantID uuid.UUID, periodType enum.SummaryPeriod, from, to time.Time) ([]entity.FinancialSummary, error) {
	invoices, err := s.Repos.Invoices.ListBilled(ctx, from, to)
	if err != nil {
		return nil, err
	}
	payments, err := s.Repos.Payments.ListCompleted(ctx, from, to)
	if err != nil {
		return nil, err
	}
	refunds, err := s.Repos.Refunds.ListProcessed(ctx, from, to)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	rows := make(map[time.Time]*entity.FinancialSummary)
	row := func(d time.Time) *entity.FinancialSummary {
		key := bucket(periodType, d)
		if r, ok := rows[key]; ok {
			return r
		}
		r := &entity.FinancialSummary{
			TenantID:         tenantID,
			PeriodType:       periodType,
			PeriodDate:       key,
			TotalInvoiced:    decimal.Zero,
			TotalCollected:   decimal.Zero,
			TotalRefunded:    decimal.Zero,
			TotalOutstanding: decimal.Zero,
			CollectionRate:   decimal.Zero,
			GeneratedAt:      now,
		}
		rows[key] = r
		return r
	}

	for _, inv := range invoices {
		r := row(inv.InvoiceDate)
		r.TotalInvoiced = r.TotalInvoiced.Add(inv.Total)
		r.TotalOutstanding = r.TotalOutstanding.Add(inv.Outstanding)
		r.InvoiceCount++
	}
	for _, p := range payments {
		r := row(p.Date)
		r.TotalCollected = r.TotalCollected.Add(p.Amount)
		r.PaymentCount++
	}
	for _, rf := range refunds {
		if rf.ProcessedAt == nil {
			continue
		}
		r := row(s.day(*rf.ProcessedAt))
		r.TotalRefunded = r.TotalRefunded.Add(rf.Amount)
		r.TotalCollected = r.TotalCollected.Sub(rf.Amount)
	}

	summaries := make([]entity.FinancialSummary, 0, len(rows))
	for _, r := range rows {
		if r.TotalInvoiced.IsPositive() {
			r.CollectionRate = r.TotalCollected.Mul(decimal.NewFromInt(100)).Div(r.TotalInvoiced).Round(2)
		}
		summaries = append(summaries, *r)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].PeriodDate.Before(summaries[j].PeriodDate) })

	if err := s.Repos.Summaries.Replace(ctx, tenantID, periodType, from, to, summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// RebuildAll rebuilds the range for every tenant with billing activity, a
// bounded number of tenants at a time.
func (s *SummaryService) RebuildAll(ctx context.Context, r *SummaryRange) (*RebuildReport, error) {
	from, to, err := s.normalise(r)
	if err != nil {
		return nil, err
	}

	all := tenancy.WithSkipTenantScope(ctx)
	withInvoices, err := s.Repos.Invoices.ListTenantIDs(all)
	if err != nil {
		return nil, err
	}
	withPayments, err := s.Repos.Payments.ListTenantIDs(all)
	if err != nil {
		return nil, err
	}
	tenants := lo.Uniq(append(withInvoices, withPayments...))

	var rows atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Billing.SweepConcurrency))
	for _, tenantID := range tenants {
		g.Go(func() error {
			tctx := tenancy.WithSystemActor(gctx, tenantID)
			summaries, err := s.rebuild(tctx, tenantID, r.PeriodType, from, to)
			if err != nil {
				s.Log.Error("summary rebuild failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
				return err
			}
			rows.Add(int64(len(summaries)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &RebuildReport{Tenants: len(tenants), Rows: rows.Load()}
	s.Log.Info("summaries rebuilt",
		zap.String("period_type", string(r.PeriodType)),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("tenants", report.Tenants),
		zap.Int64("rows", report.Rows),
	)
	return report, nil
}

// List returns the caller tenant's summaries in the range
func (s *SummaryService) List(ctx context.Context, r *SummaryRange) ([]entity.FinancialSummary, error) {
	from, to, err := s.normalise(r)
	if err != nil {
		return nil, err
	}
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	return s.Repos.Summaries.List(ctx, r.PeriodType, from, to)
}
