package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "binId"})
	WriteError(context.Background(), testLogger(), w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %s", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorKeepsDomainMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNoScaleData, "scale at station ST-1 returned no data"))

	if got := w.Code; got != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 but got %d", got)
	}
	if !strings.Contains(w.Body.String(), "ST-1") {
		t.Fatalf("expected domain message in body: %s", w.Body.String())
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Fatalf("internal errors must not leak: %s", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteFileSetsAttachmentHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteFile(w, "text/csv", "bins.csv", func(out io.Writer) error {
		_, err := out.Write([]byte("B1\n"))
		return err
	})
	if err != nil {
		t.Fatalf("write file: %v", err)
	}
	if w.Header().Get("Content-Disposition") != `attachment; filename="bins.csv"` {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if w.Body.String() != "B1\n" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestWriteErrorFlagsRetryableDependencyFailures(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), w, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "load bin"))

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if !body.Error.Retryable {
		t.Fatal("dependency failures must be marked retryable")
	}

	w = httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), w, pkgerrors.New(pkgerrors.CodeValidation, "bad"))
	if strings.Contains(w.Body.String(), "retryable") {
		t.Fatalf("validation errors must not be retryable: %s", w.Body.String())
	}
}

func TestWriteErrorLogsRejectionWithBinAndStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	w := httptest.NewRecorder()

	err := pkgerrors.New(pkgerrors.CodeConflict, "bin B1 already assigned").
		WithDetails(map[string]any{"binId": "B1"})
	WriteError(context.Background(), logg, w, err)

	line := buf.String()
	for _, want := range []string{`"bin_id":"B1"`, `"status":409`, `"level":"warn"`, `"error_code":"CONFLICT"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in log line %s", want, line)
		}
	}
	if strings.Contains(line, `"pg"`) {
		t.Fatalf("pg detail should be omitted without a driver error: %s", line)
	}
}
