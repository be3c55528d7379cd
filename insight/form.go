// Package insight はページ上で完結する2つの計算を提供する
//
// 決定パス分類（出席率・課題提出率・テスト平均からの閾値判定）と、
// 成績推移の予測曲線。どちらも副作用のない決定的な関数。
package insight

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// parseRequired は必須項目をすべて数値として読み取る
// 空欄があれば MissingFieldsError、数値でないか NaN・Inf なら ValidationError
func parseRequired(form string, values map[string]string, names []string) (map[string]float64, error) {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingFieldsError(form, missing)
	}
	out := make(map[string]float64, len(names))
	for _, name := range names {
		v, err := strconv.ParseFloat(strings.TrimSpace(values[name]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewValidationError(name, "must be a finite number", values[name])
		}
		out[name] = v
	}
	return out, nil
}

func checkRange(name string, v, lo, hi float64) error {
	if !(v >= lo && v <= hi) {
		return errors.NewValidationError(name, "must be within ["+strconv.FormatFloat(lo, 'g', -1, 64)+", "+strconv.FormatFloat(hi, 'g', -1, 64)+"]", v)
	}
	return nil
}
