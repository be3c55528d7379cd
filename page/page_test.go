package page

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/eduinsight/insight"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

// fakePredictor records every call.
type fakePredictor struct {
	mu       sync.Mutex
	calls    int
	features student.Features
	k        int
	periods  int
	err      error
}

func (f *fakePredictor) record(features student.Features) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.features = features
}

func (f *fakePredictor) PredictLinearRegression(_ context.Context, x student.Features) (*registry.GradePrediction, error) {
	f.record(x)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.GradePrediction{PredictedGrade: 14.2}, nil
}

func (f *fakePredictor) PredictNaiveBayes(_ context.Context, x student.Features) (*registry.RiskAssessment, error) {
	f.record(x)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.RiskAssessment{PredictedPerformance: "Good", RiskLevel: "Low"}, nil
}

func (f *fakePredictor) PredictKNN(_ context.Context, x student.Features, k int) (*registry.NeighborsResult, error) {
	f.record(x)
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	return &registry.NeighborsResult{PredictedLabel: "Average", K: k}, nil
}

func (f *fakePredictor) PredictSVM(_ context.Context, x student.Features) (*registry.Classification, error) {
	f.record(x)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.Classification{PredictedLabel: "Good"}, nil
}

func (f *fakePredictor) PredictDecisionTree(_ context.Context, x student.Features) (*registry.DecisionPath, error) {
	f.record(x)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.DecisionPath{PredictedClass: "Good"}, nil
}

func (f *fakePredictor) PredictANN(_ context.Context, x student.Features, periods int) (*registry.GradeForecast, error) {
	f.record(x)
	f.periods = periods
	if f.err != nil {
		return nil, f.err
	}
	return &registry.GradeForecast{Periods: periods}, nil
}

// filled returns a valid value for every field of form.
func filled(form Form) map[string]string {
	values := map[string]string{
		insight.FieldAttendance:         "80",
		insight.FieldAssignments:        "85",
		insight.FieldTestScore:          "90",
		insight.FieldCurrentScore:       "70",
		insight.FieldStudyHours:         "10",
		insight.FieldAssignmentQuality:  "80",
		insight.FieldParticipationScore: "60",
	}
	for _, f := range student.Fields {
		values[f.Name] = "2"
	}
	values["age"] = "17"
	out := make(map[string]string)
	for _, name := range form.Fields() {
		out[name] = values[name]
	}
	return out
}

// submitter is the common surface of every controller.
type submitter interface {
	Form() Form
	SetAll(map[string]string) error
	Set(name, value string) error
	Submit(ctx context.Context) error
}

func TestMissingRequiredField_NoRequest(t *testing.T) {
	fake := &fakePredictor{}
	pages := map[string]func() (submitter, func() Modal){
		LinearRegressionForm: func() (submitter, func() Modal) {
			c := LinearRegression(fake)
			return c, func() Modal { return c.State().Modal }
		},
		NaiveBayesForm: func() (submitter, func() Modal) {
			c := NaiveBayes(fake)
			return c, func() Modal { return c.State().Modal }
		},
		KNNForm: func() (submitter, func() Modal) {
			c := KNN(fake, 5)
			return c, func() Modal { return c.State().Modal }
		},
		SVMForm: func() (submitter, func() Modal) {
			c := SVM(fake)
			return c, func() Modal { return c.State().Modal }
		},
		TreePathForm: func() (submitter, func() Modal) {
			c := TreePath(fake)
			return c, func() Modal { return c.State().Modal }
		},
		GradeForecastForm: func() (submitter, func() Modal) {
			c := GradeForecast(fake, 4)
			return c, func() Modal { return c.State().Modal }
		},
		insight.DecisionForm: func() (submitter, func() Modal) {
			c := DecisionTree()
			return c, func() Modal { return c.State().Modal }
		},
		insight.ForecastForm: func() (submitter, func() Modal) {
			c := Trend()
			return c, func() Modal { return c.State().Modal }
		},
	}

	for name, build := range pages {
		first, _ := build()
		for _, field := range first.Form().Required {
			for _, blank := range []string{"", "   "} {
				t.Run(name+"/"+field, func(t *testing.T) {
					c, modal := build()
					require.NoError(t, c.SetAll(filled(c.Form())))
					require.NoError(t, c.Set(field, blank))

					err := c.Submit(context.Background())
					var mf *errors.MissingFieldsError
					require.True(t, errors.As(err, &mf), "got %v", err)
					assert.Equal(t, []string{field}, mf.Fields)
					assert.Equal(t, Modal{
						Visible: true,
						Title:   "Missing Required Fields",
						Message: "Please fill in all required fields before generating results. All input fields must be completed.",
					}, modal())
				})
			}
		}
	}
	assert.Zero(t, fake.calls)
}

func TestLinearRegression_SendsFixedBackground(t *testing.T) {
	fake := &fakePredictor{}
	c := LinearRegression(fake)
	require.NoError(t, c.SetAll(map[string]string{
		"age": "18", "studytime": "3", "absences": "4", "G1": "12", "G2": "13",
		"failures": "0", "Medu": "4", "Fedu": "1",
	}))
	require.NoError(t, c.Submit(context.Background()))

	assert.Equal(t, 1, fake.calls)
	want := student.Features{
		"age": 18, "Medu": 4, "Fedu": 1, "traveltime": 1, "studytime": 3,
		"failures": 0, "famrel": 4, "freetime": 3, "goout": 2, "Dalc": 1,
		"Walc": 1, "health": 3, "absences": 4, "G1": 12, "G2": 13,
	}
	assert.Equal(t, want, fake.features)

	st := c.State()
	require.NotNil(t, st.Result)
	assert.InDelta(t, 14.2, st.Result.PredictedGrade, 1e-12)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestNaiveBayes_OptionalFields(t *testing.T) {
	fake := &fakePredictor{}
	c := NaiveBayes(fake)
	require.NoError(t, c.SetAll(map[string]string{
		"age": "16", "studytime": "2", "absences": "0", "G1": "9", "G2": "10",
	}))
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, 2.0, fake.features["Medu"])
	assert.Equal(t, 2.0, fake.features["Fedu"])
	assert.Equal(t, 0.0, fake.features["failures"])

	require.NoError(t, c.Set("Medu", "4"))
	require.NoError(t, c.Submit(context.Background()))
	assert.Equal(t, 4.0, fake.features["Medu"])
}

func TestFailure_InlineMessage(t *testing.T) {
	apiErr := errors.NewAPIError("/predict/svm", 503, "Service Unavailable", "")

	lr := LinearRegression(&fakePredictor{err: apiErr})
	require.NoError(t, lr.SetAll(filled(lr.Form())))
	assert.Error(t, lr.Submit(context.Background()))
	assert.Equal(t, "Failed to get prediction. Make sure the backend server is running.", lr.State().Error)
	assert.Nil(t, lr.State().Result)

	svm := SVM(&fakePredictor{err: apiErr})
	require.NoError(t, svm.SetAll(filled(svm.Form())))
	assert.Error(t, svm.Submit(context.Background()))
	assert.Equal(t, "API Error: Service Unavailable", svm.State().Error)
}

func TestFailure_ClearsPreviousResult(t *testing.T) {
	fake := &fakePredictor{}
	c := SVM(fake)
	require.NoError(t, c.SetAll(filled(c.Form())))
	require.NoError(t, c.Submit(context.Background()))
	require.NotNil(t, c.State().Result)

	fake.err = errors.New("connection refused")
	assert.Error(t, c.Submit(context.Background()))
	assert.Nil(t, c.State().Result)
	assert.Equal(t, "connection refused", c.State().Error)

	fake.err = nil
	require.NoError(t, c.Submit(context.Background()))
	assert.Empty(t, c.State().Error)
}

func TestKNNAndForecast_PassParameters(t *testing.T) {
	fake := &fakePredictor{}
	k := KNN(fake, 7)
	require.NoError(t, k.SetAll(filled(k.Form())))
	require.NoError(t, k.Submit(context.Background()))
	assert.Equal(t, 7, fake.k)

	g := GradeForecast(fake, 6)
	require.NoError(t, g.SetAll(filled(g.Form())))
	require.NoError(t, g.Submit(context.Background()))
	assert.Equal(t, 6, fake.periods)
	assert.Equal(t, 6, g.State().Result.Periods)
}

func TestSubmit_BusyWhileLoading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	c := NewController(Form{Name: "slow", Required: []string{"x"}}, func(ctx context.Context, v map[string]string) (*string, error) {
		calls++
		close(started)
		<-release
		s := v["x"]
		return &s, nil
	})
	require.NoError(t, c.Set("x", "1"))

	done := make(chan error)
	go func() { done <- c.Submit(context.Background()) }()
	<-started
	assert.True(t, c.State().Loading)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)
	st := c.State()
	assert.False(t, st.Loading)
	assert.Equal(t, "1", *st.Result)
}

func TestSet_UnknownField(t *testing.T) {
	c := LinearRegression(&fakePredictor{})
	err := c.Set("traveltime", "2")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestClearAndDismiss(t *testing.T) {
	c := DecisionTree()
	require.NoError(t, c.SetAll(map[string]string{"attendance": "80", "assignments": "85", "test_score": "90"}))
	require.NoError(t, c.Submit(context.Background()))
	st := c.State()
	require.NotNil(t, st.Result)
	assert.Equal(t, insight.Excellent, st.Result.Outcome)

	c.Clear()
	st = c.State()
	assert.Empty(t, st.Values)
	assert.Nil(t, st.Result)

	assert.Error(t, c.Submit(context.Background()))
	assert.True(t, c.State().Modal.Visible)
	c.DismissModal()
	assert.False(t, c.State().Modal.Visible)
}

func TestTrend_OutOfRangeIsInlineError(t *testing.T) {
	c := Trend()
	require.NoError(t, c.SetAll(map[string]string{
		"current_score": "150", "study_hours": "10", "assignment_quality": "80", "participation": "60",
	}))
	err := c.Submit(context.Background())
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.False(t, c.State().Modal.Visible)
	assert.Contains(t, c.State().Error, "current_score")
}

func TestNonNumericRequiredField_InlineErrorNoRequest(t *testing.T) {
	fake := &fakePredictor{}
	stateOf := func(s submitter) (string, Modal, bool) {
		switch c := s.(type) {
		case *Controller[registry.GradePrediction]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[registry.RiskAssessment]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[registry.NeighborsResult]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[registry.Classification]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[registry.DecisionPath]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[registry.GradeForecast]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[insight.DecisionResult]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		case *Controller[insight.Trend]:
			st := c.State()
			return st.Error, st.Modal, st.Result == nil
		}
		return "unexpected controller", Modal{}, false
	}
	pages := map[string]func() submitter{
		LinearRegressionForm: func() submitter { return LinearRegression(fake) },
		NaiveBayesForm:       func() submitter { return NaiveBayes(fake) },
		KNNForm:              func() submitter { return KNN(fake, 5) },
		SVMForm:              func() submitter { return SVM(fake) },
		TreePathForm:         func() submitter { return TreePath(fake) },
		GradeForecastForm:    func() submitter { return GradeForecast(fake, 4) },
		insight.DecisionForm: func() submitter { return DecisionTree() },
		insight.ForecastForm: func() submitter { return Trend() },
	}

	for name, build := range pages {
		for _, field := range build().Form().Required {
			for _, value := range []string{"abc", "NaN", "Inf"} {
				t.Run(name+"/"+field+"="+value, func(t *testing.T) {
					c := build()
					require.NoError(t, c.SetAll(filled(c.Form())))
					require.NoError(t, c.Set(field, value))

					err := c.Submit(context.Background())
					var ve *errors.ValidationError
					require.True(t, errors.As(err, &ve), "got %v", err)
					assert.Equal(t, field, ve.ParamName)

					msg, modal, noResult := stateOf(c)
					assert.Contains(t, msg, field)
					assert.False(t, modal.Visible)
					assert.True(t, noResult)
				})
			}
		}
	}
	assert.Zero(t, fake.calls)
}
