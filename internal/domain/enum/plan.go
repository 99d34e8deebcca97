package enum

// PlanFrequency is the spacing between installments
type PlanFrequency string

const (
	PlanWeekly    PlanFrequency = "weekly"
	PlanMonthly   PlanFrequency = "monthly"
	PlanQuarterly PlanFrequency = "quarterly"
)

// IsValid reports whether f is a known plan frequency
func (f PlanFrequency) IsValid() bool {
	return f == PlanWeekly || f == PlanMonthly || f == PlanQuarterly
}

// PlanStatus represents the status of a payment plan
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanDefaulted PlanStatus = "defaulted"
	PlanCancelled PlanStatus = "cancelled"
)

// InstallmentStatus represents the status of a single installment
type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentPaid      InstallmentStatus = "paid"
	InstallmentOverdue   InstallmentStatus = "overdue"
	InstallmentDefaulted InstallmentStatus = "defaulted"
)
