package insight

import (
	"math"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// ForecastForm と各項目名は推移予測フォームの必須項目
const (
	ForecastForm            = "ann"
	FieldCurrentScore       = "current_score"
	FieldStudyHours         = "study_hours"
	FieldAssignmentQuality  = "assignment_quality"
	FieldParticipationScore = "participation"
)

// ForecastFields は推移予測の必須項目
var ForecastFields = []string{FieldCurrentScore, FieldStudyHours, FieldAssignmentQuality, FieldParticipationScore}

// TrendSteps は予測曲線の点の数（Current と 6 か月）
const TrendSteps = 7

// TrendLabels は予測曲線の横軸
var TrendLabels = []string{"Current", "Month 1", "Month 2", "Month 3", "Month 4", "Month 5", "Month 6"}

// 予測曲線ごとの成長率の倍率
const (
	optimisticFactor   = 1.2
	conservativeFactor = 0.7
	declinePerStep     = 2.0
	growthScale        = 0.15
)

// 点予測の信頼度。入力から導かれる値ではなく固定値
const (
	ShortTermConfidence = 0.92
	MidTermConfidence   = 0.85
	LongTermConfidence  = 0.78
)

// TrendInput は推移予測の入力
type TrendInput struct {
	CurrentScore      float64 `json:"current_score"`      // 0..100
	StudyHours        float64 `json:"study_hours"`        // 週あたり、0 以上
	AssignmentQuality float64 `json:"assignment_quality"` // 0..100
	Participation     float64 `json:"participation"`      // 0..100
}

// Validate は定義域を確認する
func (in TrendInput) Validate() error {
	if err := checkRange(FieldCurrentScore, in.CurrentScore, 0, 100); err != nil {
		return err
	}
	if in.StudyHours < 0 || math.IsInf(in.StudyHours, 0) || math.IsNaN(in.StudyHours) {
		return errors.NewValidationError(FieldStudyHours, "must be non-negative", in.StudyHours)
	}
	if err := checkRange(FieldAssignmentQuality, in.AssignmentQuality, 0, 100); err != nil {
		return err
	}
	return checkRange(FieldParticipationScore, in.Participation, 0, 100)
}

// GrowthRate は3つの正規化した入力の平均に 0.15 を掛けた成長率
func (in TrendInput) GrowthRate() float64 {
	return (in.StudyHours/20 + in.AssignmentQuality/100 + in.Participation/100) / 3 * growthScale
}

// Curves は4つの予測曲線。どれも TrendSteps 点
type Curves struct {
	Labels        []string  `json:"labels"`
	Optimistic    []float64 `json:"optimistic"`
	Realistic     []float64 `json:"realistic"`
	Conservative  []float64 `json:"conservative"`
	NoImprovement []float64 `json:"no_improvement"`
}

// PointPrediction は一定期間後の予測点
type PointPrediction struct {
	Steps      int     `json:"steps"`
	Grade      float64 `json:"grade"`
	Confidence float64 `json:"confidence"`
}

// Factor は予測に効く要因と影響度
type Factor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"`
}

// Trend は推移予測の結果
type Trend struct {
	GrowthRate float64         `json:"growth_rate"`
	Curves     Curves          `json:"curves"`
	ShortTerm  PointPrediction `json:"short_term"`
	MidTerm    PointPrediction `json:"mid_term"`
	LongTerm   PointPrediction `json:"long_term"`
	Factors    []Factor        `json:"factors"`
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// jsRound は 0.5 を正の無限大方向に丸める
func jsRound(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Forecast は予測曲線と点予測を作る
//
// i 番目の点（i = 0..6）は
// optimistic = current + i*g*100*1.2、realistic = current + i*g*100、
// conservative = current + i*g*100*0.7、no_improvement = current - 2i。
// すべて [0, 100] に収める。
func Forecast(in TrendInput) Trend {
	g := in.GrowthRate()
	step := g * 100
	c := Curves{
		Labels:        append([]string(nil), TrendLabels...),
		Optimistic:    make([]float64, TrendSteps),
		Realistic:     make([]float64, TrendSteps),
		Conservative:  make([]float64, TrendSteps),
		NoImprovement: make([]float64, TrendSteps),
	}
	for i := 0; i < TrendSteps; i++ {
		fi := float64(i)
		c.Optimistic[i] = clamp100(in.CurrentScore + fi*step*optimisticFactor)
		c.Realistic[i] = clamp100(in.CurrentScore + fi*step)
		c.Conservative[i] = clamp100(in.CurrentScore + fi*step*conservativeFactor)
		c.NoImprovement[i] = clamp100(in.CurrentScore - fi*declinePerStep)
	}

	point := func(steps int, confidence float64) PointPrediction {
		return PointPrediction{
			Steps:      steps,
			Grade:      clamp100(jsRound(in.CurrentScore + step*float64(steps))),
			Confidence: confidence,
		}
	}
	return Trend{
		GrowthRate: g,
		Curves:     c,
		ShortTerm:  point(1, ShortTermConfidence),
		MidTerm:    point(3, MidTermConfidence),
		LongTerm:   point(6, LongTermConfidence),
		Factors: []Factor{
			{Name: "Study Pattern", Impact: in.StudyHours / 20},
			{Name: "Assignment Quality", Impact: in.AssignmentQuality / 100},
			{Name: "Participation", Impact: in.Participation / 100},
		},
	}
}

// ParseTrendForm はフォームの文字列値を検証して入力を作る
func ParseTrendForm(values map[string]string) (TrendInput, error) {
	v, err := parseRequired(ForecastForm, values, ForecastFields)
	if err != nil {
		return TrendInput{}, err
	}
	in := TrendInput{
		CurrentScore:      v[FieldCurrentScore],
		StudyHours:        v[FieldStudyHours],
		AssignmentQuality: v[FieldAssignmentQuality],
		Participation:     v[FieldParticipationScore],
	}
	if err := in.Validate(); err != nil {
		return TrendInput{}, err
	}
	return in, nil
}

// ForecastFromForm はフォームの値から推移予測を作る
func ForecastFromForm(values map[string]string) (Trend, error) {
	in, err := ParseTrendForm(values)
	if err != nil {
		return Trend{}, err
	}
	return Forecast(in), nil
}
