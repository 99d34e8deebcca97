package enum

// FeeStructureStatus represents the lifecycle of a fee structure
type FeeStructureStatus string

const (
	FeeStructureDraft    FeeStructureStatus = "draft"
	FeeStructureActive   FeeStructureStatus = "active"
	FeeStructureInactive FeeStructureStatus = "inactive"
	FeeStructureArchived FeeStructureStatus = "archived"
)

var feeStructureTransitions = map[FeeStructureStatus][]FeeStructureStatus{
	FeeStructureDraft:    {FeeStructureActive},
	FeeStructureActive:   {FeeStructureInactive, FeeStructureArchived},
	FeeStructureInactive: {FeeStructureActive, FeeStructureArchived},
}

func (s FeeStructureStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the structure may move from s to next.
// Archived is terminal.
func (s FeeStructureStatus) CanTransitionTo(next FeeStructureStatus) bool {
	for _, allowed := range feeStructureTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Frequency is how often a fee item is charged. It doubles as the billing
// period type (all values except one_time).
type Frequency string

const (
	FrequencyTerm      Frequency = "term"
	FrequencyAnnual    Frequency = "annual"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyOneTime   Frequency = "one_time"
)

func (f Frequency) String() string {
	return string(f)
}

// IsValid reports whether f is a known frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyTerm, FrequencyAnnual, FrequencyMonthly, FrequencyQuarterly, FrequencyOneTime:
		return true
	}
	return false
}

// IsBillingPeriod reports whether f can be used as the type of a billing run
func (f Frequency) IsBillingPeriod() bool {
	return f.IsValid() && f != FrequencyOneTime
}
