package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// LabelEncoder は文字列ラベルを 0..n_classes-1 の整数に符号化する
// クラスは辞書順に並び、"At-Risk" < "Average" < "Good" のように割り当てられる
type LabelEncoder struct {
	State *model.StateManager

	// Classes は辞書順のクラス名
	Classes []string

	index map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{State: model.NewStateManager()}
}

// Fit はラベルの一覧からクラスを学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if e.State == nil {
		e.State = model.NewStateManager()
	}

	seen := make(map[string]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	e.Classes = make([]string, 0, len(seen))
	for l := range seen {
		e.Classes = append(e.Classes, l)
	}
	sort.Strings(e.Classes)
	e.buildIndex()

	e.State.SetDimensions(1, len(labels))
	e.State.SetFitted()
	return nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

// Transform はラベルを整数コードに変換する。未知のラベルはエラー
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if err := e.State.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	if e.index == nil {
		// gobから復元した場合
		e.buildIndex()
	}
	codes := make([]int, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, errors.NewValidationError("label", "unseen label", l)
		}
		codes[i] = code
	}
	return codes, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform は整数コードをラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.State.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValidationError("code", "out of range", c)
		}
		labels[i] = e.Classes[c]
	}
	return labels, nil
}

// Label はコードに対応するクラス名を返す。範囲外なら空文字列
func (e *LabelEncoder) Label(code int) string {
	if code < 0 || code >= len(e.Classes) {
		return ""
	}
	return e.Classes[code]
}
