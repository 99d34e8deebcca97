package utils

import (
	"fmt"
	"strings"
)

// DocumentNumber formats a sequence value as PREFIX-YEAR-000042.
func DocumentNumber(prefix string, year int, seq int64, width int) string {
	return fmt.Sprintf("%s-%d-%0*d", strings.ToUpper(prefix), year, width, seq)
}

// SequenceName builds the per-tenant sequence key for a document kind and year.
func SequenceName(kind string, year int) string {
	return fmt.Sprintf("%s:%d", kind, year)
}
