package errors

import "fmt"

// TransitionDetails describes a refused lifecycle transition.
type TransitionDetails struct {
	BinID         string `json:"binId"`
	CurrentStatus string `json:"currentStatus"`
	Target        string `json:"target,omitempty"`
	Condition     string `json:"condition"`
}

func ComponentNotFound(componentID string) *Error {
	return New(CodeComponentNotFound, fmt.Sprintf("component %s not found", componentID)).
		WithDetails(map[string]any{"componentId": componentID})
}

func InvalidScaleReading(componentID, reason string) *Error {
	return New(CodeInvalidScaleReading, fmt.Sprintf("invalid scale reading for component %s: %s", componentID, reason)).
		WithDetails(map[string]any{"componentId": componentID, "reason": reason})
}

func NoScaleData(stationID string) *Error {
	return New(CodeNoScaleData, fmt.Sprintf("no scale data available on station %s", stationID)).
		WithDetails(map[string]any{"stationId": stationID})
}

func WorkOrderNotFound(jtc string) *Error {
	return New(CodeWorkOrderNotFound, fmt.Sprintf("work order %s not found", jtc)).
		WithDetails(map[string]any{"jtc": jtc})
}

func BomNotFound(revisionID string) *Error {
	return New(CodeBomNotFound, fmt.Sprintf("no bom lines for revision %s", revisionID)).
		WithDetails(map[string]any{"revisionId": revisionID})
}

// IllegalTransition reports the bin's current status and the precondition
// that was not met. Callers must not have mutated anything.
func IllegalTransition(d TransitionDetails) *Error {
	msg := fmt.Sprintf("bin %s is %s: %s", d.BinID, d.CurrentStatus, d.Condition)
	return New(CodeIllegalTransition, msg).WithDetails(d)
}
