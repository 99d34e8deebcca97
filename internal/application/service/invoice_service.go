package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/sangkips/bursar-api/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService generates and manages student invoices
type InvoiceService struct {
	*Core
	assignments *AssignmentService
	recon       *ReconciliationService
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(core *Core, assignments *AssignmentService, recon *ReconciliationService) *InvoiceService {
	return &InvoiceService{Core: core, assignments: assignments, recon: recon}
}

// BillingPeriod identifies what an invoice run bills for
type BillingPeriod struct {
	Key   string         `validate:"required,max=50"`
	Type  enum.Frequency `validate:"required"`
	Start time.Time
	End   time.Time
}

// GenerateInput is the input of Generate
type GenerateInput struct {
	Period        BillingPeriod
	InvoiceDate   time.Time
	DueDate       time.Time
	StudentIDs    []uuid.UUID
	AssignmentIDs []uuid.UUID
	Draft         bool
	// SkipExisting turns a student already billed for the period into a skip
	// instead of a DuplicateInvoiceError.
	SkipExisting bool
	Notes        string
}

// SkippedStudent explains why a student got no invoice
type SkippedStudent struct {
	StudentID uuid.UUID `json:"student_id"`
	Reason    string    `json:"reason"`
}

// GenerateResult is what a generation run produced
type GenerateResult struct {
	Invoices []entity.Invoice `json:"invoices"`
	Skipped  []SkippedStudent `json:"skipped"`
}

// draftInvoice is an invoice built in memory before anything is written.
type draftInvoice struct {
	invoice entity.Invoice
}

// Generate bills every resolved assignment for the period: one invoice per
// student, combining all structures the student is on. Nothing is written
// unless every student passes the checks.
func (s *InvoiceService) Generate(ctx context.Context, input *GenerateInput) (*GenerateResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Period.Type.IsBillingPeriod() {
		return nil, apperror.NewFieldError("period_type", "period type must be one of term, monthly, quarterly, annual")
	}
	if input.InvoiceDate.IsZero() || input.DueDate.IsZero() {
		return nil, apperror.NewFieldError("due_date", "invoice_date and due_date are required")
	}
	invoiceDate, dueDate := s.day(input.InvoiceDate), s.day(input.DueDate)
	if dueDate.Before(invoiceDate) {
		return nil, apperror.NewFieldError("due_date", "due_date must not be before invoice_date")
	}
	if !input.Period.Start.IsZero() && !input.Period.End.IsZero() && input.Period.End.Before(input.Period.Start) {
		return nil, apperror.NewFieldError("period_end", "period end must not be before period start")
	}

	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := s.assignments.Resolve(ctx, input.StudentIDs, invoiceDate)
	if err != nil {
		return nil, err
	}
	if len(input.AssignmentIDs) > 0 {
		resolved, err = s.requested(ctx, actor, resolved, input.AssignmentIDs)
		if err != nil {
			return nil, err
		}
	}

	byStudent := lo.GroupBy(resolved, func(r ResolvedAssignment) uuid.UUID { return r.Assignment.StudentID })
	students := lo.Keys(byStudent)
	sort.Slice(students, func(i, j int) bool { return students[i].String() < students[j].String() })

	keys := lo.Map(students, func(id uuid.UUID, _ int) string { return lock.StudentKey(id) })
	result := &GenerateResult{Invoices: []entity.Invoice{}, Skipped: []SkippedStudent{}}

	err = s.guarded(ctx, keys, func(ctx context.Context) error {
		result.Invoices = result.Invoices[:0]
		result.Skipped = result.Skipped[:0]

		drafts := make([]*draftInvoice, 0, len(students))
		for _, studentID := range students {
			draft, reason, err := s.build(ctx, actor, studentID, byStudent[studentID], input, invoiceDate, dueDate)
			if err != nil {
				return err
			}
			if draft == nil {
				result.Skipped = append(result.Skipped, SkippedStudent{StudentID: studentID, Reason: reason})
				continue
			}
			drafts = append(drafts, draft)
		}

		for _, d := range drafts {
			if err := s.create(ctx, actor, &d.invoice); err != nil {
				return err
			}
			result.Invoices = append(result.Invoices, d.invoice)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("invoices generated",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("period", input.Period.Key),
		zap.Int("created", len(result.Invoices)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// requested narrows resolved to the assignments the caller named. Each of
// them must be in effect at the invoice date.
func (s *InvoiceService) requested(ctx context.Context, actor tenancy.Actor, resolved []ResolvedAssignment, ids []uuid.UUID) ([]ResolvedAssignment, error) {
	byID := lo.KeyBy(resolved, func(r ResolvedAssignment) uuid.UUID { return r.Assignment.ID })
	out := make([]ResolvedAssignment, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		r, ok := byID[id]
		if !ok {
			a, err := s.Repos.Assignments.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if a != nil {
				if err := sameTenant(actor, a.TenantID); err != nil {
					return nil, err
				}
			}
			return nil, apperror.New(apperror.ErrInvalidAssignment, "Assignment "+id.String()+" is not active at the invoice date")
		}
		out = append(out, r)
	}
	return out, nil
}

// build assembles one student's invoice. A nil invoice with a reason means the
// student is skipped.
func (s *InvoiceService) build(ctx context.Context, actor tenancy.Actor, studentID uuid.UUID, assignments []ResolvedAssignment, input *GenerateInput, invoiceDate, dueDate time.Time) (*draftInvoice, string, error) {
	var lines []entity.InvoiceLineItem
	var billed []entity.FeeItem

	for _, r := range assignments {
		exists, err := s.Repos.Invoices.ExistsForPeriod(ctx, studentID, r.Structure.ID, input.Period.Key)
		if err != nil {
			return nil, "", err
		}
		if exists {
			if input.SkipExisting {
				return nil, "already invoiced for period " + input.Period.Key, nil
			}
			return nil, "", apperror.New(apperror.ErrDuplicateInvoice,
				"Student "+studentID.String()+" is already invoiced for "+r.Structure.Name+" in period "+input.Period.Key)
		}

		var items []entity.FeeItem
		for _, item := range r.Structure.Items {
			switch item.Frequency {
			case input.Period.Type:
				items = append(items, item)
			case enum.FrequencyOneTime:
				done, err := s.Repos.Invoices.HasBilledFeeItem(ctx, studentID, item.ID)
				if err != nil {
					return nil, "", err
				}
				if !done {
					items = append(items, item)
				}
			}
		}
		if len(items) == 0 {
			continue
		}

		grosses := lo.Map(items, func(item entity.FeeItem, _ int) decimal.Decimal { return item.BaseAmount })
		gross := decimal.Sum(decimal.Zero, grosses...)
		discount := billing.AssignmentDiscount(gross, r.Assignment.DiscountPercent, r.Assignment.DiscountAmount)
		shares := billing.SpreadDiscount(grosses, discount)

		for i, item := range items {
			line := entity.InvoiceLineItem{
				TenantID:       actor.TenantID,
				FeeItemID:      item.ID,
				StructureID:    r.Structure.ID,
				AssignmentID:   r.Assignment.ID,
				Description:    item.Name,
				Quantity:       1,
				UnitPrice:      item.BaseAmount,
				DiscountAmount: shares[i],
			}
			line.LineTotal = line.Gross().Sub(line.DiscountAmount)
			lines = append(lines, line)
		}
		billed = append(billed, items...)
	}
	if len(lines) == 0 {
		return nil, "no fee items due for period " + input.Period.Key, nil
	}

	subtotal, discount := decimal.Zero, decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Gross())
		discount = discount.Add(line.DiscountAmount)
	}
	tax := decimal.Zero
	total := subtotal.Sub(discount).Add(tax)

	policy := billing.PolicyFromItems(billed)
	maxInstallments := lo.MinBy(billed, func(a, b entity.FeeItem) bool { return a.MaxInstallments < b.MaxInstallments }).MaxInstallments

	status := enum.InvoicePending
	if input.Draft {
		status = enum.InvoiceDraft
	}

	return &draftInvoice{invoice: entity.Invoice{
		TenantID:         actor.TenantID,
		StudentID:        studentID,
		PeriodKey:        input.Period.Key,
		PeriodType:       input.Period.Type,
		InvoiceDate:      invoiceDate,
		DueDate:          dueDate,
		Currency:         s.Billing.Currency,
		Subtotal:         subtotal,
		Discount:         discount,
		Tax:              tax,
		Total:            total,
		Paid:             decimal.Zero,
		LateFee:          decimal.Zero,
		Penalty:          decimal.Zero,
		Outstanding:      total,
		Status:           status,
		LateFeeAmount:    policy.LateFeeAmount,
		GraceDays:        policy.GraceDays,
		DailyPenaltyRate: policy.DailyPenaltyRate,
		MaxInstallments:  max(1, maxInstallments),
		Notes:            input.Notes,
		CreatedBy:        actor.UserID,
		LineItems:        lines,
	}}, "", nil
}

// create numbers, reconciles and stores a built invoice, then records InvoiceCreated.
func (s *InvoiceService) create(ctx context.Context, actor tenancy.Actor, inv *entity.Invoice) error {
	year := inv.InvoiceDate.Year()
	seq, err := s.Repos.Sequences.Next(ctx, actor.TenantID, utils.SequenceName("invoice", year))
	if err != nil {
		return err
	}
	inv.InvoiceNumber = utils.DocumentNumber("INV", year, seq, s.Billing.SequenceWidth)

	if !inv.Status.IsSticky() {
		billing.Apply(inv, billing.Reconcile(billing.StateOf(inv, decimal.Zero, decimal.Zero), s.today()))
		now := s.Clock.Now()
		inv.LastReconciledAt = &now
	}
	if err := billing.CheckInvoice(inv); err != nil {
		return err
	}
	if err := s.Repos.Invoices.Create(ctx, inv); err != nil {
		return err
	}

	return s.record(ctx, inv.TenantID, enum.EventInvoiceCreated, "invoice", inv.ID, map[string]interface{}{
		"invoice_number": inv.InvoiceNumber,
		"student_id":     inv.StudentID,
		"period_key":     inv.PeriodKey,
		"total":          inv.Total,
		"due_date":       inv.DueDate.Format("2006-01-02"),
		"status":         inv.Status,
	})
}

// Issue sends a draft or pending invoice to the payer
func (s *InvoiceService) Issue(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, actor, id); err != nil {
		return nil, err
	}

	err = s.guarded(ctx, []string{lock.InvoiceKey(id)}, func(ctx context.Context) error {
		inv, err := s.Repos.Invoices.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != enum.InvoiceDraft && inv.Status != enum.InvoicePending {
			return apperror.New(apperror.ErrInvalidTransition, "Only draft or pending invoices can be issued, invoice is "+inv.Status.String())
		}
		now := s.Clock.Now()
		inv.Status = enum.InvoiceSent
		inv.IssuedAt = &now
		if err := s.Repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		_, err = s.recon.reconcileLocked(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Repos.Invoices.GetByID(ctx, id)
}

// Cancel voids an invoice nothing has been paid on. Cancelled is final.
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, actor, id); err != nil {
		return nil, err
	}

	err = s.guarded(ctx, []string{lock.InvoiceKey(id)}, func(ctx context.Context) error {
		inv, err := s.recon.reconcileLocked(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == enum.InvoiceCancelled || inv.Status == enum.InvoiceRefunded {
			return apperror.New(apperror.ErrInvalidTransition, "Invoice is already "+inv.Status.String())
		}
		if inv.Paid.IsPositive() {
			return apperror.NewConflictError("Invoice has payments allocated; refund them instead")
		}

		now := s.Clock.Now()
		inv.Status = enum.InvoiceCancelled
		inv.CancelledAt = &now
		if err := s.Repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}

		plan, err := s.Repos.Plans.GetByInvoiceID(ctx, id)
		if err != nil || plan == nil || plan.Status == enum.PlanCancelled || plan.Status == enum.PlanCompleted {
			return err
		}
		plan.Status = enum.PlanCancelled
		return s.Repos.Plans.Update(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.Repos.Invoices.GetByID(ctx, id)
}

// Get returns an invoice with its line items
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadInvoice(ctx, actor, id)
}

// List lists invoices with filters and pagination
func (s *InvoiceService) List(ctx context.Context, params *repository.InvoiceFilterParams) (*pagination.PaginatedResult[entity.Invoice], error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	params.Pagination = page(params.Pagination)

	invoices, total, err := s.Repos.Invoices.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return pagination.NewPaginatedResult(invoices, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)), nil
}

// ListByStudent lists one student's invoices
func (s *InvoiceService) ListByStudent(ctx context.Context, studentID uuid.UUID, params *pagination.PaginationParams) (*pagination.PaginatedResult[entity.Invoice], error) {
	return s.List(ctx, &repository.InvoiceFilterParams{Pagination: params, StudentID: &studentID})
}
