package student

// Label は最終成績 G3 から決まる成績区分
type Label string

const (
	Good    Label = "Good"
	Average Label = "Average"
	AtRisk  Label = "At-Risk"
)

// Labels は分類器のクラス番号順（アルファベット順）のラベル
// At-Risk=0, Average=1, Good=2
var Labels = []Label{AtRisk, Average, Good}

// LabelNames は Labels の文字列版
var LabelNames = []string{string(AtRisk), string(Average), string(Good)}

// LabelFromGrade は G3 >= 15 を Good、G3 >= 10 を Average、それ以外を At-Risk とする
func LabelFromGrade(g3 float64) Label {
	switch {
	case g3 >= 15:
		return Good
	case g3 >= 10:
		return Average
	default:
		return AtRisk
	}
}

// Code はラベルのクラス番号を返す。未知のラベルは -1
func (l Label) Code() int {
	for i, x := range Labels {
		if x == l {
			return i
		}
	}
	return -1
}

// LabelFromCode はクラス番号からラベルを返す
func LabelFromCode(code int) (Label, bool) {
	if code < 0 || code >= len(Labels) {
		return "", false
	}
	return Labels[code], true
}

// RiskLevel は成績区分に対応するリスク水準
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// RiskLevels は表示順のリスク水準
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Risk は At-Risk→High、Average→Medium、Good→Low を返す
func (l Label) Risk() RiskLevel {
	switch l {
	case AtRisk:
		return RiskHigh
	case Average:
		return RiskMedium
	default:
		return RiskLow
	}
}
