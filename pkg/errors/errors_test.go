package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "eduinsight: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "eduinsight: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 15, 3, 1)

	want := "eduinsight: Predict: dimension mismatch on axis 1 (features). Expected 15, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("GaussianNB", "PredictProba")

	want := "eduinsight: GaussianNB: this model is not fitted yet. Call Fit() before using PredictProba()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("absences", "must be within [0, 93]", 120.0)

	want := "eduinsight: validation failed for parameter 'absences': must be within [0, 93] (got: 120)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Fatal("Error should be castable to *ValidationError")
	}
	if valErr.ParamName != "absences" {
		t.Errorf("ParamName = %q, want absences", valErr.ParamName)
	}
}

func TestNewMissingFieldsError(t *testing.T) {
	err := NewMissingFieldsError("knn", []string{"studytime", "G1", "age"})

	var missing *MissingFieldsError
	if !As(err, &missing) {
		t.Fatal("Error should be castable to *MissingFieldsError")
	}

	want := []string{"G1", "age", "studytime"}
	if strings.Join(missing.Fields, ",") != strings.Join(want, ",") {
		t.Errorf("Fields = %v, want %v", missing.Fields, want)
	}
	if !strings.Contains(err.Error(), "missing required fields: G1, age, studytime") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNewModelUnavailableError(t *testing.T) {
	err := NewModelUnavailableError("svm")

	if err.Error() != "Model not loaded. Please train the models first." {
		t.Errorf("unexpected message %q", err.Error())
	}

	var unavailable *ModelUnavailableError
	if !As(err, &unavailable) || unavailable.Model != "svm" {
		t.Error("Error should be castable to *ModelUnavailableError with model name")
	}
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("/predict/knn", 503, "Service Unavailable", "Model not loaded")

	if err.Error() != "API Error: Service Unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}

	var apiErr *APIError
	if !As(err, &apiErr) {
		t.Fatal("Error should be castable to *APIError")
	}
	if apiErr.StatusCode != 503 || apiErr.Endpoint != "/predict/knn" {
		t.Errorf("unexpected fields %+v", apiErr)
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("MLPRegressor", 500, "loss did not converge")

	want := "MLPRegressor failed to converge after 500 iterations: loss did not converge"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}
}

func TestWarnUsesHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(nil)

	warn := NewConvergenceWarning("MLPClassifier", 10, "")
	Warn(warn)

	if got != warn {
		t.Errorf("handler received %v, want %v", got, warn)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrDatasetNotFound, "loading student-mat.csv")

	if !Is(wrapped, ErrDatasetNotFound) {
		t.Error("Expected Is(wrapped, ErrDatasetNotFound) to be true")
	}
	if !strings.Contains(wrapped.Error(), "loading student-mat.csv") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows", "Fit", 10)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Fit: expected 10 rows") {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestStacktrace(t *testing.T) {
	if Stacktrace(nil) != "" {
		t.Error("nil error should have no stacktrace")
	}

	err := NewValueError("Fit", "bad input")
	if !strings.Contains(Stacktrace(err), "errors_test.go") {
		t.Error("Expected stacktrace to reference the caller")
	}
}

func TestLogSumExp(t *testing.T) {
	got := LogSumExp([]float64{0, 0})
	if diff := got - 0.6931471805599453; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("LogSumExp = %v, want ln 2", got)
	}

	if got := LogSumExp([]float64{1000, 1000}); got < 1000 || got > 1001 {
		t.Errorf("LogSumExp should not overflow, got %v", got)
	}
}

func TestClipValue(t *testing.T) {
	if ClipValue(25, 0, 20) != 20 || ClipValue(-3, 0, 20) != 0 || ClipValue(12.5, 0, 20) != 12.5 {
		t.Error("ClipValue did not clamp to [0, 20]")
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("op", []float64{1, -2, 0}, 3); err != nil {
		t.Errorf("finite values should pass, got %v", err)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := CheckNumericalStability("op", []float64{1, bad}, 3)
		var ni *NumericalInstabilityError
		if !As(err, &ni) {
			t.Fatalf("expected NumericalInstabilityError for %v, got %v", bad, err)
		}
		if ni.Iteration != 3 {
			t.Errorf("Iteration = %d, want 3", ni.Iteration)
		}
		if CheckScalar("op", bad, 0) == nil {
			t.Errorf("CheckScalar(%v) should fail", bad)
		}
	}
}
