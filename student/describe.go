package student

import (
	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Summary は数値列ひとつの要約統計量
// 四分位数は montanaflynn/stats の Quartile（中央値分割法）による
type Summary struct {
	Count float64  `json:"count"`
	Mean  float64  `json:"mean"`
	Std   *float64 `json:"std"` // 標本標準偏差。2件未満では null
	Min   float64  `json:"min"`
	Q25   float64  `json:"25%"`
	Q50   float64  `json:"50%"`
	Q75   float64  `json:"75%"`
	Max   float64  `json:"max"`
}

// Summarize は値の要約統計量を計算する
func Summarize(values []float64) (Summary, error) {
	data := stats.Float64Data(values)
	if data.Len() == 0 {
		return Summary{}, errors.NewModelError("student.Summarize", "empty data", errors.ErrEmptyData)
	}
	s := Summary{Count: float64(data.Len())}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, errors.Wrap(err, "mean")
	}
	if s.Min, err = stats.Min(data); err != nil {
		return Summary{}, errors.Wrap(err, "min")
	}
	if s.Max, err = stats.Max(data); err != nil {
		return Summary{}, errors.Wrap(err, "max")
	}
	if data.Len() >= 2 {
		std, err := stats.StandardDeviationSample(data)
		if err != nil {
			return Summary{}, errors.Wrap(err, "std")
		}
		s.Std = &std
	}
	if data.Len() == 1 {
		s.Q25, s.Q50, s.Q75 = values[0], values[0], values[0]
		return s, nil
	}
	q, err := stats.Quartile(data)
	if err != nil {
		return Summary{}, errors.Wrap(err, "quartile")
	}
	s.Q25, s.Q50, s.Q75 = q.Q1, q.Q2, q.Q3
	return s, nil
}

// Describe は数値列ごとの要約統計量を返す。値がひとつもない列は含めない
func (d *Dataset) Describe() (map[string]Summary, error) {
	out := make(map[string]Summary)
	for _, c := range d.schema.columns {
		if c.Type == Object {
			continue
		}
		values, err := d.Column(c.Name)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		s, err := Summarize(values)
		if err != nil {
			return nil, errors.Wrapf(err, "describe %s", c.Name)
		}
		out[c.Name] = s
	}
	return out, nil
}

// GradeRange は G3 の最小・最大・平均
type GradeRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// GradeRange は G3 の範囲を返す
func (d *Dataset) GradeRange() (GradeRange, error) {
	grades, err := d.Column(GradeColumn)
	if err != nil {
		return GradeRange{}, err
	}
	s, err := Summarize(grades)
	if err != nil {
		return GradeRange{}, err
	}
	return GradeRange{Min: s.Min, Max: s.Max, Mean: s.Mean}, nil
}

// Info はデータセット概要（/api/dataset の応答）
type Info struct {
	Shape                   [2]int             `json:"shape"`
	Columns                 []string           `json:"columns"`
	DTypes                  map[string]string  `json:"dtypes"`
	MissingValues           map[string]int     `json:"missing_values"`
	Statistics              map[string]Summary `json:"statistics"`
	Sample                  []Record           `json:"sample"`
	PerformanceDistribution map[string]int     `json:"performance_distribution"`
	GradeRange              GradeRange         `json:"grade_range"`
}

// InfoSampleSize は Info に含める先頭レコード数
const InfoSampleSize = 10

// Info はデータセットの概要をまとめる
func (d *Dataset) Info() (*Info, error) {
	statistics, err := d.Describe()
	if err != nil {
		return nil, err
	}
	grades, err := d.GradeRange()
	if err != nil {
		return nil, err
	}
	return &Info{
		Shape:                   d.Shape(),
		Columns:                 d.ColumnNames(),
		DTypes:                  d.DTypes(),
		MissingValues:           d.MissingValues(),
		Statistics:              statistics,
		Sample:                  d.Head(InfoSampleSize),
		PerformanceDistribution: d.PerformanceDistribution(),
		GradeRange:              grades,
	}, nil
}
