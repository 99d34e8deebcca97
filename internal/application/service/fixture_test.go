package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/entity"
	"github.com/sangkips/bursar-api/internal/domain/enum"
	"github.com/sangkips/bursar-api/internal/domain/gateway"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixture is one tenant with a cash and a gateway payment method and an active
// fee structure billing a single termly tuition item.
type fixture struct {
	*Services
	t         *testing.T
	clock     *FixedClock
	tenantID  uuid.UUID
	ctx       context.Context
	checker   context.Context
	cash      *entity.PaymentMethod
	online    *entity.PaymentMethod
	structure *entity.FeeStructure
	category  *entity.FeeCategory
}

type fixtureSetup struct {
	billing config.BillingConfig
	gateway gateway.Gateway
}

type fixtureOption func(*fixtureSetup)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	setup := fixtureSetup{billing: config.BillingConfig{
		Currency:         "KES",
		Timezone:         "UTC",
		SequenceWidth:    6,
		LockTimeout:      time.Second,
		LockRetries:      2,
		SweepConcurrency: 2,
	}}
	for _, opt := range opts {
		opt(&setup)
	}
	cfg := setup.billing

	clock := NewFixedClock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	core := NewCore(memory.NewRegistry(memory.Open()), lock.NewManager(cfg.LockTimeout), clock, zap.NewNop(), cfg)

	f := &fixture{
		Services: NewServices(core, setup.gateway),
		t:        t,
		clock:    clock,
		tenantID: uuid.New(),
	}
	f.ctx = tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: f.tenantID, UserID: uuid.New(), Role: tenancy.RoleBursar})
	f.checker = tenancy.WithActor(context.Background(), tenancy.Actor{TenantID: f.tenantID, UserID: uuid.New(), Role: tenancy.RoleAccountant})

	var err error
	f.cash, err = f.Payments.CreateMethod(f.ctx, &MethodInput{Code: "cash", Name: "Cash", Channel: enum.ChannelCash})
	require.NoError(t, err)
	f.online, err = f.Payments.CreateMethod(f.ctx, &MethodInput{Code: "gateway", Name: "Online", Channel: enum.ChannelGateway})
	require.NoError(t, err)

	f.category, err = f.Catalog.CreateCategory(f.ctx, &CategoryInput{Name: "Tuition", Code: "tuition", Mandatory: true})
	require.NoError(t, err)
	f.structure = f.newStructure(FeeItemInput{
		Name:             "Tuition",
		BaseAmount:       dec("300"),
		Frequency:        enum.FrequencyTerm,
		MaxInstallments:  3,
		LateFeeAmount:    dec("25"),
		GraceDays:        7,
		DailyPenaltyRate: dec("0.001"),
	})
	return f
}

// newStructure creates and activates a structure holding the given items.
func (f *fixture) newStructure(items ...FeeItemInput) *entity.FeeStructure {
	f.t.Helper()
	fs, err := f.Catalog.CreateStructure(f.ctx, &StructureInput{
		Name:          "Grade 4 " + uuid.NewString()[:4],
		AcademicYear:  "2026",
		GradeLevels:   []string{"4"},
		EffectiveFrom: date(2026, 1, 1),
	})
	require.NoError(f.t, err)
	for i := range items {
		items[i].CategoryID = f.category.ID
		if items[i].MaxInstallments == 0 {
			items[i].MaxInstallments = 1
		}
		_, err := f.Catalog.AddFeeItem(f.ctx, fs.ID, &items[i])
		require.NoError(f.t, err)
	}
	fs, err = f.Catalog.TransitionStructure(f.ctx, fs.ID, enum.FeeStructureActive)
	require.NoError(f.t, err)
	return fs
}

func (f *fixture) assign(studentID uuid.UUID, structure *entity.FeeStructure) *entity.StudentFeeAssignment {
	f.t.Helper()
	a, err := f.Assignments.Assign(f.ctx, &AssignInput{StudentID: studentID, StructureID: structure.ID})
	require.NoError(f.t, err)
	return a
}

func termOne() BillingPeriod {
	return BillingPeriod{Key: "2026-T1", Type: enum.FrequencyTerm, Start: date(2026, 1, 5), End: date(2026, 4, 3)}
}

// invoice bills a fresh student for term one, due ten days from the clock.
func (f *fixture) invoice() *entity.Invoice {
	f.t.Helper()
	studentID := uuid.New()
	f.assign(studentID, f.structure)
	return f.invoiceFor(studentID)
}

func (f *fixture) invoiceFor(studentID uuid.UUID) *entity.Invoice {
	f.t.Helper()
	res, err := f.Invoices.Generate(f.ctx, &GenerateInput{
		Period:      termOne(),
		InvoiceDate: date(2026, 1, 10),
		DueDate:     date(2026, 1, 20),
		StudentIDs:  []uuid.UUID{studentID},
	})
	require.NoError(f.t, err)
	require.Len(f.t, res.Invoices, 1)
	return &res.Invoices[0]
}

// paid records and confirms a cash payment.
func (f *fixture) paid(studentID uuid.UUID, amount string) *entity.Payment {
	f.t.Helper()
	p, err := f.Payments.Record(f.ctx, &RecordPaymentInput{StudentID: studentID, Amount: dec(amount), MethodID: f.cash.ID})
	require.NoError(f.t, err)
	p, err = f.Payments.Confirm(f.ctx, p.ID, &ConfirmInput{Result: enum.GatewaySuccess})
	require.NoError(f.t, err)
	require.Equal(f.t, enum.PaymentCompleted, p.Status)
	return p
}

func (f *fixture) reload(id uuid.UUID) *entity.Invoice {
	f.t.Helper()
	inv, err := f.Invoices.Get(f.ctx, id)
	require.NoError(f.t, err)
	return inv
}

// events returns the types of all pending events, oldest first.
func (f *fixture) events() []enum.EventType {
	f.t.Helper()
	res, err := f.Events.ListPending(f.ctx, nil)
	require.NoError(f.t, err)
	out := make([]enum.EventType, 0, len(res.Items))
	for _, e := range res.Items {
		out = append(out, e.Type)
	}
	return out
}
