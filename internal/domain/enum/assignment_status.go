package enum

// AssignmentStatus represents the status of a student's fee assignment
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentSuspended AssignmentStatus = "suspended"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

func (s AssignmentStatus) String() string {
	return string(s)
}
