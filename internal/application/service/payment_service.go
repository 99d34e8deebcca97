package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sangkips/bursar-api/internal/domain/billing"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/gateway"
	"github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/pkg/apperror"
	"github.com/sangkips/bursar-api/pkg/pagination"
	"github.com/sangkips/bursar-api/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// referenceAttempts bounds the search for a free generated payment reference.
const referenceAttempts = 5

// AllocationObserver is told about money moving onto or off an invoice. It runs
// while the invoice lock is held and must not take locks itself.
type AllocationObserver interface {
	OnAllocated(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error
	OnReversed(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error
}

// PaymentService records payments and allocates them to invoices
type PaymentService struct {
	*Core
	recon     *ReconciliationService
	gateway   gateway.Gateway
	observers []AllocationObserver
}

// NewPaymentService creates a new payment service. gw may be nil when no online
// gateway is configured.
func NewPaymentService(core *Core, recon *ReconciliationService, gw gateway.Gateway) *PaymentService {
	return &PaymentService{Core: core, recon: recon, gateway: gw}
}

// RegisterObserver adds an observer of allocation changes
func (s *PaymentService) RegisterObserver(o AllocationObserver) {
	s.observers = append(s.observers, o)
}

// MethodInput is the input of CreateMethod
type MethodInput struct {
	Code    string              `validate:"required,max=50"`
	Name    string              `validate:"required,max=255"`
	Channel enum.PaymentChannel `validate:"required"`
}

// CreateMethod adds a payment method to the tenant's reference data
func (s *PaymentService) CreateMethod(ctx context.Context, input *MethodInput) (*entity.PaymentMethod, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Channel.IsValid() {
		return nil, apperror.NewFieldError("channel", "channel must be one of cash, bank_transfer, card, mobile_money, gateway")
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	existing, err := s.Repos.Methods.GetByCode(ctx, actor.TenantID, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError("Payment method code already exists")
	}

	method := &entity.PaymentMethod{
		TenantID: actor.TenantID,
		Code:     code,
		Name:     input.Name,
		Channel:  input.Channel,
		Active:   true,
	}
	if err := s.Repos.Methods.Create(ctx, method); err != nil {
		return nil, err
	}
	return method, nil
}

// ListMethods lists the tenant's payment methods
func (s *PaymentService) ListMethods(ctx context.Context) ([]entity.PaymentMethod, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	return s.Repos.Methods.List(ctx)
}

// RecordPaymentInput is the input of Record
type RecordPaymentInput struct {
	StudentID    uuid.UUID       `validate:"required"`
	Amount       decimal.Decimal `validate:"dgt=0"`
	MethodID     uuid.UUID       `validate:"required"`
	Reference    string          `validate:"max=100"`
	Currency     string          `validate:"omitempty,len=3"`
	Date         time.Time
	AutoAllocate bool
}

// Record registers money received from a payer as a pending payment.
// Recording the same reference again for the same student and amount returns
// the payment already on file.
func (s *PaymentService) Record(ctx context.Context, input *RecordPaymentInput) (*entity.Payment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Amount.Equal(billing.Cents(input.Amount)) {
		return nil, apperror.NewFieldError("amount", "amount must have at most two decimal places")
	}
	currency := strings.ToUpper(input.Currency)
	if currency == "" {
		currency = s.Billing.Currency
	}
	if currency != s.Billing.Currency {
		return nil, apperror.NewFieldError("currency", "payments must be in "+s.Billing.Currency)
	}

	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	method, err := s.Repos.Methods.GetByID(ctx, input.MethodID)
	if err != nil {
		return nil, err
	}
	method, err = check(actor, method, func(m *entity.PaymentMethod) uuid.UUID { return m.TenantID }, "Payment method")
	if err != nil {
		return nil, err
	}
	if !method.Active {
		return nil, apperror.NewFieldError("method_id", "payment method is not active")
	}

	date := s.today()
	if !input.Date.IsZero() {
		date = s.day(input.Date)
	}

	var payment *entity.Payment
	err = s.guarded(ctx, []string{lock.StudentKey(input.StudentID)}, func(ctx context.Context) error {
		reference := strings.TrimSpace(input.Reference)
		if reference != "" {
			existing, err := s.Repos.Payments.GetByReference(ctx, actor.TenantID, reference)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.StudentID == input.StudentID && existing.Amount.Equal(input.Amount) {
					payment = existing
					return nil
				}
				return apperror.NewConflictError("Payment reference " + reference + " is already used")
			}
		} else {
			reference, err = s.nextReference(ctx, actor.TenantID, date.Year())
			if err != nil {
				return err
			}
		}

		payment = &entity.Payment{
			TenantID:       actor.TenantID,
			StudentID:      input.StudentID,
			Reference:      reference,
			Date:           date,
			MethodID:       method.ID,
			Amount:         input.Amount,
			Currency:       currency,
			Status:         enum.PaymentPending,
			AutoAllocate:   input.AutoAllocate,
			CreditRefunded: decimal.Zero,
			CreatedBy:      actor.UserID,
		}
		return s.Repos.Payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// nextReference hands out PAY-<year>-<seq>, skipping numbers a caller already
// used as a manual reference.
func (s *PaymentService) nextReference(ctx context.Context, tenantID uuid.UUID, year int) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		seq, err := s.Repos.Sequences.Next(ctx, tenantID, utils.SequenceName("payment", year))
		if err != nil {
			return "", err
		}
		ref := utils.DocumentNumber("PAY", year, seq, s.Billing.SequenceWidth)
		existing, err := s.Repos.Payments.GetByReference(ctx, tenantID, ref)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return ref, nil
		}
	}
	return "", apperror.New(apperror.ErrConcurrency, "Could not allocate a payment reference")
}

// InitiateResult is a payment handed over to the online gateway
type InitiateResult struct {
	Payment     *entity.Payment `json:"payment"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// Initiate starts a gateway payment. The payment moves to processing and waits
// for the provider's callback; nothing is assumed about its outcome.
func (s *PaymentService) Initiate(ctx context.Context, id uuid.UUID) (*InitiateResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := s.loadPayment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	method, err := s.Repos.Methods.GetByID(ctx, payment.MethodID)
	if err != nil {
		return nil, err
	}
	if method == nil || method.Channel != enum.ChannelGateway {
		return nil, apperror.NewBadRequestError("Only gateway payments can be initiated")
	}
	if payment.Status != enum.PaymentPending {
		return nil, apperror.New(apperror.ErrInvalidTransition, "Only pending payments can be initiated, payment is "+payment.Status.String())
	}
	if s.gateway == nil {
		return nil, apperror.New(apperror.ErrExternal, "No payment gateway is configured")
	}

	session, err := s.gateway.Initiate(ctx, payment)
	if err != nil {
		s.Log.Warn("gateway initiation failed", zap.String("payment_id", id.String()), zap.Error(err))
		return nil, apperror.New(apperror.ErrExternal, "Payment gateway rejected the request: "+err.Error())
	}
	s.Log.Info("gateway payment initiated", zap.String("payment_id", id.String()), zap.String("gateway_ref", session.Ref))

	err = s.guarded(ctx, []string{lock.PaymentKey(id)}, func(ctx context.Context) error {
		p, err := s.Repos.Payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != enum.PaymentPending {
			return apperror.NewConflictError("Payment changed while it was being initiated")
		}
		ref := session.Ref
		p.GatewayRef = &ref
		p.GatewayResponse = session.Raw
		p.Status = enum.PaymentProcessing
		if err := s.Repos.Payments.Update(ctx, p); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &InitiateResult{Payment: payment, RedirectURL: session.RedirectURL}, nil
}

// ConfirmInput is a definitive outcome for a payment
type ConfirmInput struct {
	Result        enum.GatewayResult `validate:"required,oneof=success failure"`
	ExternalTxnID string             `validate:"max=100"`
	Raw           string
}

// Confirm moves a pending or processing payment to completed or failed. A
// payment already in a terminal state is returned unchanged, so repeated and
// out-of-order callbacks are harmless.
func (s *PaymentService) Confirm(ctx context.Context, id uuid.UUID, input *ConfirmInput) (*entity.Payment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadPayment(ctx, actor, id); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	changed := false
	err = s.guarded(ctx, []string{lock.PaymentKey(id)}, func(ctx context.Context) error {
		p, err := s.Repos.Payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		payment, changed = p, false
		if p.Status.IsTerminal() {
			return nil
		}

		now := s.Clock.Now()
		if input.Result == enum.GatewaySuccess {
			p.Status = enum.PaymentCompleted
			p.ConfirmedAt = &now
		} else {
			p.Status = enum.PaymentFailed
		}
		if input.ExternalTxnID != "" {
			p.ExternalTxnID = input.ExternalTxnID
		}
		if input.Raw != "" {
			p.GatewayResponse = input.Raw
		}
		changed = true
		return s.Repos.Payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		s.Log.Debug("confirmation ignored for settled payment", zap.String("payment_id", id.String()), zap.String("status", payment.Status.String()))
		return payment, nil
	}

	s.Log.Info("payment confirmed", zap.String("payment_id", id.String()), zap.String("status", payment.Status.String()))
	if payment.Status == enum.PaymentCompleted && payment.AutoAllocate {
		if _, err := s.AutoAllocate(ctx, id); err != nil {
			s.Log.Error("auto allocation after confirmation failed", zap.String("payment_id", id.String()), zap.Error(err))
		}
		return s.Repos.Payments.GetByID(ctx, id)
	}
	return payment, nil
}

// HandleGatewayCallback applies a verified provider notification to the
// payment it refers to. Callbacks carry no user, so the payment's tenant acts.
func (s *PaymentService) HandleGatewayCallback(ctx context.Context, n *gateway.Notification) (*entity.Payment, error) {
	payment, err := s.Repos.Payments.GetByGatewayRef(tenancy.WithSkipTenantScope(ctx), n.Ref)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, apperror.NewNotFoundError("Payment")
	}
	if n.Pending {
		s.Log.Debug("gateway reports payment still pending", zap.String("gateway_ref", n.Ref))
		return payment, nil
	}

	ctx = tenancy.WithSystemActor(ctx, payment.TenantID)
	return s.Confirm(ctx, payment.ID, &ConfirmInput{
		Result:        n.Result,
		ExternalTxnID: n.ExternalTxnID,
		Raw:           n.Raw,
	})
}

// Cancel voids a pending payment. Completed payments can only be refunded.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadPayment(ctx, actor, id); err != nil {
		return nil, err
	}

	var payment *entity.Payment
	err = s.guarded(ctx, []string{lock.PaymentKey(id)}, func(ctx context.Context) error {
		p, err := s.Repos.Payments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch p.Status {
		case enum.PaymentPending:
		case enum.PaymentCompleted:
			return apperror.NewConflictError("Completed payments cannot be cancelled; refund instead")
		default:
			return apperror.New(apperror.ErrInvalidTransition, "Only pending payments can be cancelled, payment is "+p.Status.String())
		}
		now := s.Clock.Now()
		p.Status = enum.PaymentCancelled
		p.CancelledAt = &now
		payment = p
		return s.Repos.Payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// AllocationLine asks for amount of a payment to go to one invoice
type AllocationLine struct {
	InvoiceID uuid.UUID       `validate:"required"`
	Amount    decimal.Decimal `validate:"dgt=0"`
}

// Allocate applies part of a completed payment to one invoice
func (s *PaymentService) Allocate(ctx context.Context, paymentID, invoiceID uuid.UUID, amount decimal.Decimal) (*entity.PaymentAllocation, error) {
	allocations, err := s.AllocateBatch(ctx, paymentID, []AllocationLine{{InvoiceID: invoiceID, Amount: amount}})
	if err != nil {
		return nil, err
	}
	return &allocations[0], nil
}

// AllocateBatch applies a completed payment to several invoices at once. Either
// every line is committed or none is.
func (s *PaymentService) AllocateBatch(ctx context.Context, paymentID uuid.UUID, lines []AllocationLine) ([]entity.PaymentAllocation, error) {
	if len(lines) == 0 {
		return nil, apperror.NewFieldError("allocations", "at least one allocation is required")
	}
	for i := range lines {
		if err := s.validate.Struct(&lines[i]); err != nil {
			return nil, err
		}
		if !lines[i].Amount.Equal(billing.Cents(lines[i].Amount)) {
			return nil, apperror.NewFieldError("amount", "amount must have at most two decimal places")
		}
	}
	lines = mergeLines(lines)

	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadPayment(ctx, actor, paymentID); err != nil {
		return nil, err
	}

	keys := []string{lock.PaymentKey(paymentID)}
	for _, line := range lines {
		keys = append(keys, lock.InvoiceKey(line.InvoiceID))
	}

	var allocations []entity.PaymentAllocation
	err = s.guarded(ctx, keys, func(ctx context.Context) error {
		var err error
		allocations, err = s.allocateLocked(ctx, actor, paymentID, lines, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// mergeLines folds repeated invoices into one line and orders lines by invoice id.
func mergeLines(lines []AllocationLine) []AllocationLine {
	grouped := lo.GroupBy(lines, func(l AllocationLine) uuid.UUID { return l.InvoiceID })
	out := make([]AllocationLine, 0, len(grouped))
	for _, id := range billing.SortIDs(lo.Keys(grouped)) {
		amounts := lo.Map(grouped[id], func(l AllocationLine, _ int) decimal.Decimal { return l.Amount })
		out = append(out, AllocationLine{InvoiceID: id, Amount: decimal.Sum(decimal.Zero, amounts...)})
	}
	return out
}

// available is what a payment can still give to invoices.
func (s *PaymentService) available(ctx context.Context, p *entity.Payment) (decimal.Decimal, error) {
	allocated, err := s.Repos.Allocations.SumByPayment(ctx, p.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.Max(decimal.Zero, p.Amount.Sub(allocated).Sub(p.CreditRefunded)), nil
}

// allocateLocked checks every line before writing any of them. The caller holds
// the payment lock and the invoice locks of all lines. Observers are skipped
// when the caller applies the money to installments itself.
func (s *PaymentService) allocateLocked(ctx context.Context, actor tenancy.Actor, paymentID uuid.UUID, lines []AllocationLine, observe bool) ([]entity.PaymentAllocation, error) {
	p, err := s.Repos.Payments.GetForUpdate(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	p, err = check(actor, p, func(p *entity.Payment) uuid.UUID { return p.TenantID }, "Payment")
	if err != nil {
		return nil, err
	}
	if p.Status != enum.PaymentCompleted {
		return nil, apperror.New(apperror.ErrPaymentNotCompleted, "Payment "+p.Reference+" is "+p.Status.String()+", only completed payments can be allocated")
	}

	available, err := s.available(ctx, p)
	if err != nil {
		return nil, err
	}
	requested := decimal.Sum(decimal.Zero, lo.Map(lines, func(l AllocationLine, _ int) decimal.Decimal { return l.Amount })...)
	if requested.GreaterThan(available) {
		return nil, apperror.New(apperror.ErrAllocationExceeds,
			fmt.Sprintf("Allocation of %s exceeds the %s left on payment %s", requested.StringFixed(2), available.StringFixed(2), p.Reference))
	}

	// Ownership is settled for every line before any invoice is touched.
	for _, line := range lines {
		inv, err := s.Repos.Invoices.GetForUpdate(ctx, line.InvoiceID)
		if err != nil {
			return nil, err
		}
		inv, err = check(actor, inv, func(i *entity.Invoice) uuid.UUID { return i.TenantID }, "Invoice")
		if err != nil {
			return nil, err
		}
		if inv.StudentID != p.StudentID {
			return nil, apperror.NewFieldError("invoice_id", "invoice "+inv.InvoiceNumber+" belongs to another student")
		}
	}

	for _, line := range lines {
		inv, err := s.recon.reconcileLocked(ctx, line.InvoiceID)
		if err != nil {
			return nil, err
		}
		if inv.Status.IsSticky() {
			return nil, apperror.New(apperror.ErrInvalidTransition, "Invoice "+inv.InvoiceNumber+" is "+inv.Status.String()+" and cannot take payments")
		}
		if line.Amount.GreaterThan(inv.Outstanding) {
			return nil, apperror.New(apperror.ErrAllocationExceeds,
				fmt.Sprintf("Allocation of %s exceeds the %s outstanding on invoice %s", line.Amount.StringFixed(2), inv.Outstanding.StringFixed(2), inv.InvoiceNumber))
		}
	}

	today := s.today()
	out := make([]entity.PaymentAllocation, 0, len(lines))
	for _, line := range lines {
		alloc, err := s.Repos.Allocations.Get(ctx, paymentID, line.InvoiceID)
		if err != nil {
			return nil, err
		}
		if alloc != nil {
			alloc.AllocatedAmount = alloc.AllocatedAmount.Add(line.Amount)
			alloc.Date = today
			err = s.Repos.Allocations.Update(ctx, alloc)
		} else {
			alloc = &entity.PaymentAllocation{
				TenantID:        p.TenantID,
				PaymentID:       paymentID,
				InvoiceID:       line.InvoiceID,
				AllocatedAmount: line.Amount,
				Date:            today,
				CreatedBy:       actor.UserID,
			}
			err = s.Repos.Allocations.Create(ctx, alloc)
		}
		if err != nil {
			return nil, err
		}

		inv, err := s.recon.reconcileLocked(ctx, line.InvoiceID)
		if err != nil {
			return nil, err
		}
		if observe {
			for _, o := range s.observers {
				if err := o.OnAllocated(ctx, line.InvoiceID, line.Amount); err != nil {
					return nil, err
				}
			}
		}

		err = s.record(ctx, p.TenantID, enum.EventPaymentAllocated, "payment", p.ID, map[string]interface{}{
			"payment_reference": p.Reference,
			"invoice_id":        inv.ID,
			"invoice_number":    inv.InvoiceNumber,
			"student_id":        p.StudentID,
			"amount":            line.Amount,
			"invoice_status":    inv.Status,
			"outstanding":       inv.Outstanding,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *alloc)
	}
	return out, nil
}

// AutoAllocateResult is what auto allocation did with a payment
type AutoAllocateResult struct {
	Allocations []entity.PaymentAllocation `json:"allocations"`
	Credit      decimal.Decimal            `json:"credit"`
}

// AutoAllocate spreads whatever is left of a completed payment over the
// student's open invoices, oldest due date first. The rest stays as credit.
func (s *PaymentService) AutoAllocate(ctx context.Context, paymentID uuid.UUID) (*AutoAllocateResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := s.loadPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	open, err := s.Repos.Invoices.ListOpenByStudent(ctx, payment.StudentID)
	if err != nil {
		return nil, err
	}

	keys := []string{lock.PaymentKey(paymentID)}
	for _, inv := range open {
		keys = append(keys, lock.InvoiceKey(inv.ID))
	}

	result := &AutoAllocateResult{Allocations: []entity.PaymentAllocation{}}
	err = s.guarded(ctx, keys, func(ctx context.Context) error {
		p, err := s.Repos.Payments.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != enum.PaymentCompleted {
			return apperror.New(apperror.ErrPaymentNotCompleted, "Payment "+p.Reference+" is "+p.Status.String()+", only completed payments can be allocated")
		}
		available, err := s.available(ctx, p)
		if err != nil {
			return err
		}

		candidates := make([]billing.OpenInvoice, 0, len(open))
		for _, o := range open {
			inv, err := s.recon.reconcileLocked(ctx, o.ID)
			if err != nil {
				return err
			}
			if inv.Status.IsOpen() {
				candidates = append(candidates, billing.OpenInvoice{ID: inv.ID, DueDate: inv.DueDate, Outstanding: inv.Outstanding})
			}
		}

		portions, rest := billing.PlanAutoAllocation(available, candidates)
		result.Credit = rest
		result.Allocations = result.Allocations[:0]
		if len(portions) == 0 {
			return nil
		}
		lines := lo.Map(portions, func(p billing.Portion, _ int) AllocationLine {
			return AllocationLine{InvoiceID: p.InvoiceID, Amount: p.Amount}
		})
		allocations, err := s.allocateLocked(ctx, actor, paymentID, lines, true)
		if err != nil {
			return err
		}
		result.Allocations = allocations
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("payment auto allocated",
		zap.String("payment_id", paymentID.String()),
		zap.Int("invoices", len(result.Allocations)),
		zap.String("credit", result.Credit.StringFixed(2)),
	)
	return result, nil
}

// StudentCredit is money a student has paid that no invoice has taken
type StudentCredit struct {
	StudentID       uuid.UUID        `json:"student_id"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	DisplayAmount   *decimal.Decimal `json:"display_amount,omitempty"`
	DisplayCurrency string           `json:"display_currency,omitempty"`
}

// CreditBalance returns the unallocated money of a student's settled payments
// less what overpayment refunds already paid back.
func (s *PaymentService) CreditBalance(ctx context.Context, studentID uuid.UUID) (*StudentCredit, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	credit, err := s.creditOf(ctx, studentID)
	if err != nil {
		return nil, err
	}

	out := &StudentCredit{StudentID: studentID, Amount: credit, Currency: s.Billing.Currency}
	if s.Billing.DisplayCurrency != "" && s.Billing.DisplayCurrency != s.Billing.Currency && s.Billing.DisplayRate.IsPositive() {
		display := billing.Cents(credit.Mul(s.Billing.DisplayRate))
		out.DisplayAmount = &display
		out.DisplayCurrency = s.Billing.DisplayCurrency
	}
	return out, nil
}

func (s *PaymentService) creditOf(ctx context.Context, studentID uuid.UUID) (decimal.Decimal, error) {
	payments, err := s.Repos.Payments.ListSettledByStudent(ctx, studentID)
	if err != nil {
		return decimal.Zero, err
	}
	credit := decimal.Zero
	for i := range payments {
		left, err := s.available(ctx, &payments[i])
		if err != nil {
			return decimal.Zero, err
		}
		credit = credit.Add(left)
	}
	return credit, nil
}

// Get returns a payment
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadPayment(ctx, actor, id)
}

// List lists payments with filters and pagination
func (s *PaymentService) List(ctx context.Context, params *repository.PaymentFilterParams) (*pagination.PaginatedResult[entity.Payment], error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	params.Pagination = page(params.Pagination)

	payments, total, err := s.Repos.Payments.List(ctx, params)
	if err != nil {
		return nil, err
	}
	return pagination.NewPaginatedResult(payments, pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)), nil
}

// ListAllocations lists the allocations of a payment
func (s *PaymentService) ListAllocations(ctx context.Context, paymentID uuid.UUID) ([]entity.PaymentAllocation, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadPayment(ctx, actor, paymentID); err != nil {
		return nil, err
	}
	return s.Repos.Allocations.ListByPayment(ctx, paymentID)
}

// ListInvoiceAllocations lists the allocations made to an invoice
func (s *PaymentService) ListInvoiceAllocations(ctx context.Context, invoiceID uuid.UUID) ([]entity.PaymentAllocation, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadInvoice(ctx, actor, invoiceID); err != nil {
		return nil, err
	}
	return s.Repos.Allocations.ListByInvoice(ctx, invoiceID)
}

// Receipt composes a receipt for a payment from its current allocations.
func (s *PaymentService) Receipt(ctx context.Context, paymentID uuid.UUID) (*entity.Receipt, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.loadPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	allocs, err := s.Repos.Allocations.ListByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	receipt := &entity.Receipt{
		PaymentID: p.ID,
		Reference: p.Reference,
		StudentID: p.StudentID,
		Date:      p.Date,
		Currency:  p.Currency,
		Status:    string(p.Status),
		Amount:    p.Amount,
		Allocated: decimal.Zero,
		Lines:     make([]entity.ReceiptLine, 0, len(allocs)),
		IssuedAt:  s.Clock.Now(),
	}
	if method, err := s.Repos.Methods.GetByID(ctx, p.MethodID); err == nil && method != nil {
		receipt.Method = method.Name
	}

	for _, a := range allocs {
		inv, err := s.loadInvoice(ctx, actor, a.InvoiceID)
		if err != nil {
			return nil, err
		}
		receipt.Allocated = receipt.Allocated.Add(a.AllocatedAmount)
		receipt.Lines = append(receipt.Lines, entity.ReceiptLine{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			PeriodKey:     inv.PeriodKey,
			Amount:        a.AllocatedAmount,
			Outstanding:   inv.Outstanding,
		})
	}
	receipt.Unallocated = p.Amount.Sub(receipt.Allocated)
	return receipt, nil
}
