package enums

import "fmt"

// PrintJobStatus tracks a queued label through the print station.
type PrintJobStatus string

const (
	PrintJobStatusQueued  PrintJobStatus = "queued"
	PrintJobStatusPrinted PrintJobStatus = "printed"
	PrintJobStatusFailed  PrintJobStatus = "failed"
)

var validPrintJobStatuses = []PrintJobStatus{
	PrintJobStatusQueued,
	PrintJobStatusPrinted,
	PrintJobStatusFailed,
}

func (p PrintJobStatus) IsValid() bool {
	for _, candidate := range validPrintJobStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePrintJobStatus converts raw input into a PrintJobStatus.
func ParsePrintJobStatus(value string) (PrintJobStatus, error) {
	for _, candidate := range validPrintJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid print job status %q", value)
}

// LabelKind records which operator action produced a label.
type LabelKind string

const (
	LabelKindAssignment LabelKind = "assignment"
	LabelKindRelease    LabelKind = "release"
	LabelKindReprint    LabelKind = "reprint"
)

var validLabelKinds = []LabelKind{
	LabelKindAssignment,
	LabelKindRelease,
	LabelKindReprint,
}

func (k LabelKind) IsValid() bool {
	for _, candidate := range validLabelKinds {
		if candidate == k {
			return true
		}
	}
	return false
}
