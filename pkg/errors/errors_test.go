package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "TrainOneIter",
			kind:     "learner failed",
			err:      fmt.Errorf("test error"),
			wantMsg:  "rgf: TrainOneIter: learner failed: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "rgf: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewStructuralInvariantError(t *testing.T) {
	err := NewStructuralInvariantError("FullyCorrectiveUpdate", 3, 1, 4, 5)

	want := "rgf: FullyCorrectiveUpdate: structural invariant violated for tree (round 3, channel 1): expected 4 leaves, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var sErr *StructuralInvariantError
	if !As(err, &sErr) {
		t.Fatal("Error should be castable to *StructuralInvariantError")
	}
	if sErr.ExpectedLeaves != 4 || sErr.GotLeaves != 5 {
		t.Errorf("unexpected leaf counts: %+v", sErr)
	}

	// ラップ後も型を取り出せる
	wrapped := Wrap(err, "round 300")
	if !As(wrapped, &sErr) {
		t.Error("Wrapped error should still be castable to *StructuralInvariantError")
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("TrainOneIter", 200, 100, 0)

	want := "rgf: TrainOneIter: dimension mismatch on axis 0 (rows). Expected 200, got 100"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Booster", "Predict")

	want := "rgf: Booster: this model is not fitted yet. Call TrainOneIter() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("learning_rate", "must be positive", -0.5)

	want := "rgf: validation failed for parameter 'learning_rate': must be positive (got: -0.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var vErr *ValidationError
	if !As(err, &vErr) {
		t.Error("Error should be castable to *ValidationError")
	}
}

func TestNoProgressWarning(t *testing.T) {
	w := NewNoProgressWarning(12, 3)

	if !strings.Contains(w.Error(), "no more leaves that meet the split requirements") {
		t.Errorf("unexpected message: %s", w.Error())
	}

	// zerologの構造化出力
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Warn().EmbedObject(w).Msg("stop")
	out := buf.String()
	for _, want := range []string{`"round":12`, `"channels":3`, `"type":"NoProgressWarning"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestWarnUsesZerologFuncWhenSet(t *testing.T) {
	var fromHandler, fromZerolog []error
	SetWarningHandler(func(w error) { fromHandler = append(fromHandler, w) })
	defer SetWarningHandler(nil)

	Warn(NewNoProgressWarning(1, 1))
	if len(fromHandler) != 1 {
		t.Fatalf("expected handler to receive 1 warning, got %d", len(fromHandler))
	}

	SetZerologWarnFunc(func(w error) { fromZerolog = append(fromZerolog, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewNoProgressWarning(2, 1))
	if len(fromZerolog) != 1 || len(fromHandler) != 1 {
		t.Errorf("expected zerolog func to take precedence, got handler=%d zerolog=%d",
			len(fromHandler), len(fromZerolog))
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "ScoreCache", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in ScoreCache: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}
