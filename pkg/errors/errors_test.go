package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeComponentNotFound, status: http.StatusNotFound, publicMsg: "component not found", detailsOK: true},
		{code: CodeInvalidScaleReading, status: http.StatusUnprocessableEntity, publicMsg: "invalid scale reading", detailsOK: true},
		{code: CodeNoScaleData, status: http.StatusServiceUnavailable, publicMsg: "no scale data available", retryable: true, detailsOK: true},
		{code: CodeWorkOrderNotFound, status: http.StatusNotFound, publicMsg: "work order not found", detailsOK: true},
		{code: CodeBomNotFound, status: http.StatusNotFound, publicMsg: "bill of materials not found", detailsOK: true},
		{code: CodeIllegalTransition, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", ComponentNotFound("C-9"))
	if got := As(err); got == nil || got.Code() != CodeComponentNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeComponentNotFound) {
		t.Fatalf("IsCode should see wrapped code")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIllegalTransitionCarriesCurrentStateAndCondition(t *testing.T) {
	err := IllegalTransition(TransitionDetails{
		BinID:         "B1",
		CurrentStatus: "Pending JTC",
		Target:        "Released",
		Condition:     "bin not in Ready for Release status",
	})
	if err.Code() != CodeIllegalTransition {
		t.Fatalf("unexpected code %s", err.Code())
	}
	details, ok := err.Details().(TransitionDetails)
	if !ok {
		t.Fatalf("expected TransitionDetails, got %T", err.Details())
	}
	if details.CurrentStatus != "Pending JTC" || details.Condition == "" {
		t.Fatalf("unexpected details %+v", details)
	}
	if err.Error() != "ILLEGAL_TRANSITION: bin B1 is Pending JTC: bin not in Ready for Release status" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDumpWalksChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("conn refused"), "load bins")
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(d.Chain))
	}
}

func TestWrapStorageClassifiesConstraintFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505", ConstraintName: "bins_pkey"}, CodeConflict},
		{"pq check", &pq.Error{Code: "23514", Constraint: "bins_ready_requires_jtc"}, CodeIllegalTransition},
		{"pgx fk", &pgconn.PgError{Code: "23503"}, CodeValidation},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, CodeDependency},
		{"sqlite unique", stdErrors.New("UNIQUE constraint failed: bins.bin_id"), CodeConflict},
		{"sqlite check", stdErrors.New("CHECK constraint failed: bins_ready_requires_jtc"), CodeIllegalTransition},
		{"plain", stdErrors.New("connection reset"), CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapStorage(fmt.Errorf("gorm: %w", tc.err), "save bin")
			if !IsCode(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestWrapStorageKeepsTypedErrors(t *testing.T) {
	typed := New(CodeBomNotFound, "no bom")
	if got := WrapStorage(typed, "save bin"); got != error(typed) {
		t.Fatalf("expected typed error to pass through, got %v", got)
	}
	if WrapStorage(nil, "save bin") != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestDumpCarriesPGDetail(t *testing.T) {
	d := Dump(Wrap(CodeConflict, &pgconn.PgError{Code: "23505", TableName: "bins"}, "create bin"))
	if d.StorageDetail.Code != "23505" || d.Table != "bins" {
		t.Fatalf("unexpected storage detail %+v", d.StorageDetail)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("scan: %w", Newf(CodeNoScaleData, "station %s idle", "S1"))
	if !stdErrors.Is(err, New(CodeNoScaleData, "")) {
		t.Fatalf("errors.Is should match on code")
	}
	if stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("errors.Is matched a different code")
	}
	if got := CodeOf(err); got != CodeNoScaleData {
		t.Fatalf("unexpected code %s", got)
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("untyped errors should map to internal, got %s", got)
	}
}
