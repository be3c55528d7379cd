// Package student は学生データの特徴量ベクトル、成績ラベル、データセットを扱う
//
// 特徴量の並びはすべてのモデルで共通で、FeatureNames の順に列になる。
package student

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Field は特徴量ひとつの定義域と既定値
type Field struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
	Meaning string
}

// Fields はモデルの列順に並んだ特徴量定義
var Fields = []Field{
	{Name: "age", Min: 15, Max: 22, Default: 17, Meaning: "student age"},
	{Name: "Medu", Min: 0, Max: 4, Default: 3, Meaning: "mother's education level"},
	{Name: "Fedu", Min: 0, Max: 4, Default: 3, Meaning: "father's education level"},
	{Name: "traveltime", Min: 1, Max: 4, Default: 1, Meaning: "commute time bucket"},
	{Name: "studytime", Min: 1, Max: 4, Default: 2, Meaning: "weekly study bucket"},
	{Name: "failures", Min: 0, Max: 4, Default: 0, Meaning: "prior class failures"},
	{Name: "famrel", Min: 1, Max: 5, Default: 4, Meaning: "family relationship quality"},
	{Name: "freetime", Min: 1, Max: 5, Default: 3, Meaning: "free time after school"},
	{Name: "goout", Min: 1, Max: 5, Default: 3, Meaning: "going out with friends"},
	{Name: "Dalc", Min: 1, Max: 5, Default: 1, Meaning: "workday alcohol consumption"},
	{Name: "Walc", Min: 1, Max: 5, Default: 1, Meaning: "weekend alcohol consumption"},
	{Name: "health", Min: 1, Max: 5, Default: 3, Meaning: "current health status"},
	{Name: "absences", Min: 0, Max: 93, Default: 0, Meaning: "number of school absences"},
	{Name: "G1", Min: 0, Max: 20, Default: 0, Meaning: "first period grade"},
	{Name: "G2", Min: 0, Max: 20, Default: 0, Meaning: "second period grade"},
}

// FeatureNames はモデルの列順の特徴量名
var FeatureNames = func() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}()

// NumFeatures は特徴量の数
var NumFeatures = len(Fields)

var fieldIndex = func() map[string]int {
	idx := make(map[string]int, len(Fields))
	for i, f := range Fields {
		idx[f.Name] = i
	}
	return idx
}()

// FieldByName は名前から特徴量定義を引く（大文字小文字を区別する）
func FieldByName(name string) (Field, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return Fields[i], true
}

// Features は JSON でやり取りされる特徴量ベクトル
// 例: {"age": 17, "Medu": 3, ...}
type Features map[string]float64

// DefaultFeatures はフォームで集めない項目の既定値で埋めたベクトルを返す
func DefaultFeatures() Features {
	f := make(Features, len(Fields))
	for _, field := range Fields {
		f[field.Name] = field.Default
	}
	return f
}

// ParseForm はフォームの文字列値から特徴量ベクトルを作る
// 空欄や欠けた項目は既定値になる。有限の数値として読めない項目は ValidationError
func ParseForm(form map[string]string) (Features, error) {
	f := DefaultFeatures()
	for _, field := range Fields {
		raw := strings.TrimSpace(form[field.Name])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValidationError(field.Name, "must be a finite number", form[field.Name])
		}
		f[field.Name] = v
	}
	return f, nil
}

// Vector はモデル入力の行を返す。欠けている項目は 0
func (f Features) Vector() []float64 {
	row := make([]float64, len(Fields))
	for i, field := range Fields {
		row[i] = f[field.Name]
	}
	return row
}

// Clone はベクトルのコピーを返す
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Validate は未知の項目と定義域外の値を拒否する。欠けている項目は許す
func (f Features) Validate() error {
	for name, v := range f {
		field, ok := FieldByName(name)
		if !ok {
			return errors.NewValidationError(name, "unknown feature", v)
		}
		if !(v >= field.Min && v <= field.Max) {
			return errors.NewValidationError(name, fmt.Sprintf("must be within [%g, %g]", field.Min, field.Max), v)
		}
	}
	return nil
}

// FromVector はモデルの行から特徴量ベクトルを復元する
func FromVector(row []float64) (Features, error) {
	if len(row) != len(Fields) {
		return nil, errors.NewDimensionError("student.FromVector", len(Fields), len(row), 1)
	}
	f := make(Features, len(Fields))
	for i, field := range Fields {
		f[field.Name] = row[i]
	}
	return f, nil
}
