package enums

// ChecklistState is the colour of one BOM line on the release checklist.
type ChecklistState string

const (
	ChecklistComplete ChecklistState = "complete"
	ChecklistPartial  ChecklistState = "partial"
	ChecklistMissing  ChecklistState = "missing"
)

func (c ChecklistState) String() string {
	return string(c)
}
