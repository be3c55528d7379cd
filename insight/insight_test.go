package insight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   DecisionInput
		want Outcome
		path []string
	}{
		{"excellent", DecisionInput{80, 85, 90}, Excellent, []string{"Pass", "Pass", "Pass"}},
		{"good", DecisionInput{80, 85, 70}, Good, []string{"Pass", "Pass", "Moderate"}},
		{"average by assignments", DecisionInput{80, 60, 99}, Average, []string{"Pass", "Fail"}},
		{"average by test", DecisionInput{50, 0, 70}, Average, []string{"Risk Factor", "Moderate"}},
		{"at risk", DecisionInput{50, 100, 40}, AtRisk, []string{"Risk Factor", "High Risk"}},
		{"boundaries are inclusive", DecisionInput{75, 80, 85}, Excellent, []string{"Pass", "Pass", "Pass"}},
		{"test boundary 60", DecisionInput{74.9, 0, 60}, Average, []string{"Risk Factor", "Moderate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.want, got.Outcome)
			results := make([]string, len(got.Path))
			for i, s := range got.Path {
				results[i] = s.Result
			}
			assert.Equal(t, tt.path, results)
			assert.Equal(t, Recommendations(tt.want), got.Recommendations)
			assert.Len(t, got.Recommendations, 3)
		})
	}
}

func TestClassify_StepText(t *testing.T) {
	got := Classify(DecisionInput{80, 85, 70})
	assert.Equal(t, []Step{
		{Feature: "Attendance", Value: "≥ 75%", Result: "Pass"},
		{Feature: "Assignment Completion", Value: "≥ 80%", Result: "Pass"},
		{Feature: "Test Scores", Value: "< 85%", Result: "Moderate"},
	}, got.Path)
	assert.Equal(t, "Continue strong study habits", got.Recommendations[0])
}

func TestClassifyForm(t *testing.T) {
	got, err := ClassifyForm(map[string]string{"attendance": "80", "assignments": "85", "test_score": "90"})
	require.NoError(t, err)
	assert.Equal(t, Excellent, got.Outcome)

	_, err = ClassifyForm(map[string]string{"attendance": "80", "assignments": " "})
	var mf *errors.MissingFieldsError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, []string{"assignments", "test_score"}, mf.Fields)
	assert.Equal(t, DecisionForm, mf.Form)

	_, err = ClassifyForm(map[string]string{"attendance": "eighty", "assignments": "85", "test_score": "90"})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestDiagram_MarksPath(t *testing.T) {
	onPath := func(root *TreeNode) []string {
		var ids []string
		root.Walk(func(n *TreeNode, _ int) {
			if n.OnPath {
				ids = append(ids, n.ID)
			}
		})
		return ids
	}

	assert.Equal(t, []string{"attendance", "assignments", "test_high", "good"}, onPath(Classify(DecisionInput{80, 85, 70}).Diagram()))
	assert.Equal(t, []string{"attendance", "assignments", "average_assignments"}, onPath(Classify(DecisionInput{80, 60, 70}).Diagram()))
	assert.Equal(t, []string{"attendance", "test_low", "at_risk"}, onPath(Classify(DecisionInput{50, 0, 40}).Diagram()))

	leaves := map[Outcome]int{}
	Diagram().Walk(func(n *TreeNode, depth int) {
		if n.IsLeaf() {
			leaves[n.Label]++
			assert.False(t, n.OnPath)
		}
	})
	assert.Equal(t, map[Outcome]int{Excellent: 1, Good: 1, Average: 2, AtRisk: 1}, leaves)
}

func TestDiagram_LeafMatchesOutcome(t *testing.T) {
	for _, in := range []DecisionInput{{80, 85, 90}, {80, 85, 70}, {80, 60, 0}, {50, 0, 70}, {50, 0, 40}} {
		r := Classify(in)
		var leaf *TreeNode
		r.Diagram().Walk(func(n *TreeNode, _ int) {
			if n.OnPath && n.IsLeaf() {
				leaf = n
			}
		})
		require.NotNil(t, leaf)
		assert.Equal(t, r.Outcome, leaf.Label)
	}
}

func TestForecast_Shape(t *testing.T) {
	inputs := []TrendInput{
		{CurrentScore: 75, StudyHours: 15, AssignmentQuality: 80, Participation: 85},
		{CurrentScore: 98, StudyHours: 40, AssignmentQuality: 100, Participation: 100},
		{CurrentScore: 3, StudyHours: 1, AssignmentQuality: 10, Participation: 0},
		{CurrentScore: 0, StudyHours: 0, AssignmentQuality: 0, Participation: 0},
	}
	for _, in := range inputs {
		tr := Forecast(in)
		curves := [][]float64{tr.Curves.Optimistic, tr.Curves.Realistic, tr.Curves.Conservative, tr.Curves.NoImprovement}
		assert.Len(t, tr.Curves.Labels, 7)
		for _, c := range curves {
			require.Len(t, c, 7)
			for _, v := range c {
				assert.True(t, v >= 0 && v <= 100, "%v out of range", v)
			}
		}
		if tr.GrowthRate > 0 {
			for _, c := range curves[:3] {
				for i := 1; i < len(c); i++ {
					assert.GreaterOrEqual(t, c[i], c[i-1])
				}
			}
		}
		for _, c := range curves {
			assert.Equal(t, in.CurrentScore, c[0])
		}
	}
}

func TestForecast_Values(t *testing.T) {
	in := TrendInput{CurrentScore: 75, StudyHours: 15, AssignmentQuality: 80, Participation: 85}
	tr := Forecast(in)
	// ((0.75 + 0.8 + 0.85) / 3) * 0.15 = 0.12
	assert.InDelta(t, 0.12, tr.GrowthRate, 1e-12)
	assert.InDelta(t, 87, tr.Curves.Realistic[1], 1e-9)
	assert.InDelta(t, 89.4, tr.Curves.Optimistic[1], 1e-9)
	assert.InDelta(t, 83.4, tr.Curves.Conservative[1], 1e-9)
	assert.Equal(t, 100.0, tr.Curves.Realistic[6])
	assert.Equal(t, 63.0, tr.Curves.NoImprovement[6])

	assert.Equal(t, PointPrediction{Steps: 1, Grade: 87, Confidence: 0.92}, tr.ShortTerm)
	assert.Equal(t, PointPrediction{Steps: 3, Grade: 100, Confidence: 0.85}, tr.MidTerm)
	assert.Equal(t, PointPrediction{Steps: 6, Grade: 100, Confidence: 0.78}, tr.LongTerm)

	require.Len(t, tr.Factors, 3)
	assert.Equal(t, Factor{Name: "Study Pattern", Impact: 0.75}, tr.Factors[0])
	assert.Equal(t, "Participation", tr.Factors[2].Name)
}

func TestForecast_ZeroGrowthDeclines(t *testing.T) {
	tr := Forecast(TrendInput{CurrentScore: 5})
	assert.Equal(t, 0.0, tr.GrowthRate)
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5, 5}, tr.Curves.Realistic)
	assert.Equal(t, []float64{5, 3, 1, 0, 0, 0, 0}, tr.Curves.NoImprovement)
}

func TestForecastFromForm(t *testing.T) {
	form := map[string]string{"current_score": "75", "study_hours": "15", "assignment_quality": "80", "participation": "85"}
	tr, err := ForecastFromForm(form)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, tr.GrowthRate, 1e-12)

	_, err = ForecastFromForm(map[string]string{"current_score": "75"})
	var mf *errors.MissingFieldsError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, []string{"assignment_quality", "participation", "study_hours"}, mf.Fields)

	bad := map[string]string{"current_score": "120", "study_hours": "15", "assignment_quality": "80", "participation": "85"}
	_, err = ForecastFromForm(bad)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "current_score", ve.ParamName)

	bad["current_score"], bad["study_hours"] = "50", "-1"
	_, err = ForecastFromForm(bad)
	assert.True(t, errors.As(err, &ve))
}

func TestClassifyForm_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{"nan attendance", "attendance", "NaN"},
		{"nan test score", "test_score", "nan"},
		{"positive infinity", "assignments", "Inf"},
		{"negative infinity", "test_score", "-Inf"},
		{"above 100", "attendance", "150"},
		{"negative", "assignments", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := map[string]string{"attendance": "80", "assignments": "90", "test_score": "70"}
			form[tt.field] = tt.value
			_, err := ClassifyForm(form)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.ParamName)
		})
	}

	got, err := ClassifyForm(map[string]string{"attendance": "0", "assignments": "100", "test_score": "100"})
	require.NoError(t, err)
	assert.Equal(t, Average, got.Outcome)
}

func TestForecastFromForm_RejectsNonFinite(t *testing.T) {
	for _, field := range ForecastFields {
		for _, value := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
			t.Run(field+"="+value, func(t *testing.T) {
				form := map[string]string{"current_score": "70", "study_hours": "10", "assignment_quality": "80", "participation": "80"}
				form[field] = value
				_, err := ForecastFromForm(form)
				var ve *errors.ValidationError
				require.True(t, errors.As(err, &ve), "got %v", err)
				assert.Equal(t, field, ve.ParamName)
			})
		}
	}
}

func TestTrendInput_ValidateNaN(t *testing.T) {
	in := TrendInput{CurrentScore: math.NaN(), StudyHours: 10, AssignmentQuality: 80, Participation: 80}
	var ve *errors.ValidationError
	assert.True(t, errors.As(in.Validate(), &ve))

	in.CurrentScore, in.Participation = 70, math.NaN()
	assert.True(t, errors.As(in.Validate(), &ve))
	assert.Equal(t, FieldParticipationScore, ve.ParamName)
}
