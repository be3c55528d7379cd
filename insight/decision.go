package insight

// Outcome は決定パス分類の結果
type Outcome string

const (
	Excellent Outcome = "Excellent"
	Good      Outcome = "Good"
	Average   Outcome = "Average"
	AtRisk    Outcome = "At Risk"
)

// DecisionForm と各項目名はフォームの必須項目
const (
	DecisionForm     = "decision-tree"
	FieldAttendance  = "attendance"
	FieldAssignments = "assignments"
	FieldTestScore   = "test_score"
)

// DecisionFields は決定パス分類の必須項目
var DecisionFields = []string{FieldAttendance, FieldAssignments, FieldTestScore}

// Step は通過した判定ひとつ
type Step struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
	Result  string `json:"result"`
}

// DecisionInput は判定に使う3つの割合（%）
type DecisionInput struct {
	Attendance  float64 `json:"attendance"`
	Assignments float64 `json:"assignments"`
	TestScore   float64 `json:"test_score"`
}

// DecisionResult は分類結果、通過した判定、推奨事項
type DecisionResult struct {
	Input           DecisionInput `json:"input"`
	Outcome         Outcome       `json:"outcome"`
	Path            []Step        `json:"path"`
	Recommendations []string      `json:"recommendations"`
}

var recommendations = map[Outcome][]string{
	Excellent: {
		"Maintain current excellent performance",
		"Consider peer mentoring opportunities",
		"Explore advanced coursework",
	},
	Good: {
		"Continue strong study habits",
		"Focus on test preparation strategies",
		"Maintain regular attendance",
	},
	Average: {
		"Improve assignment completion rate",
		"Set up weekly study schedule",
		"Attend office hours regularly",
	},
	AtRisk: {
		"Implement regular attendance tracking",
		"Set up weekly assignment checkpoints",
		"Schedule additional support sessions",
	},
}

// Recommendations は結果ごとの固定の推奨事項を返す
func Recommendations(o Outcome) []string {
	return append([]string(nil), recommendations[o]...)
}

// Classify は入れ子の閾値で結果を決める
//
//	出席 >= 75: 課題 >= 80: テスト >= 85 → Excellent / それ以外 → Good
//	            課題 < 80 → Average
//	出席 < 75:  テスト >= 60 → Average / それ以外 → At Risk
func Classify(in DecisionInput) DecisionResult {
	var (
		path    []Step
		outcome Outcome
	)
	if in.Attendance >= 75 {
		path = append(path, Step{"Attendance", "≥ 75%", "Pass"})
		if in.Assignments >= 80 {
			path = append(path, Step{"Assignment Completion", "≥ 80%", "Pass"})
			if in.TestScore >= 85 {
				path = append(path, Step{"Test Scores", "≥ 85%", "Pass"})
				outcome = Excellent
			} else {
				path = append(path, Step{"Test Scores", "< 85%", "Moderate"})
				outcome = Good
			}
		} else {
			path = append(path, Step{"Assignment Completion", "< 80%", "Fail"})
			outcome = Average
		}
	} else {
		path = append(path, Step{"Attendance", "< 75%", "Risk Factor"})
		if in.TestScore >= 60 {
			path = append(path, Step{"Test Scores", "≥ 60%", "Moderate"})
			outcome = Average
		} else {
			path = append(path, Step{"Test Scores", "< 60%", "High Risk"})
			outcome = AtRisk
		}
	}
	return DecisionResult{Input: in, Outcome: outcome, Path: path, Recommendations: Recommendations(outcome)}
}

// ParseDecisionForm はフォームの文字列値を検証して入力を作る
func ParseDecisionForm(values map[string]string) (DecisionInput, error) {
	v, err := parseRequired(DecisionForm, values, DecisionFields)
	if err != nil {
		return DecisionInput{}, err
	}
	// いずれも百分率
	for _, name := range DecisionFields {
		if err := checkRange(name, v[name], 0, 100); err != nil {
			return DecisionInput{}, err
		}
	}
	return DecisionInput{
		Attendance:  v[FieldAttendance],
		Assignments: v[FieldAssignments],
		TestScore:   v[FieldTestScore],
	}, nil
}

// ClassifyForm はフォームの値から分類する
func ClassifyForm(values map[string]string) (DecisionResult, error) {
	in, err := ParseDecisionForm(values)
	if err != nil {
		return DecisionResult{}, err
	}
	return Classify(in), nil
}

// TreeNode は表示用の決定木のノード。葉は Label を持つ
type TreeNode struct {
	ID        string    `json:"id"`
	Feature   string    `json:"feature"`
	Condition string    `json:"condition,omitempty"`
	Label     Outcome   `json:"label,omitempty"`
	Yes       *TreeNode `json:"yes,omitempty"`
	No        *TreeNode `json:"no,omitempty"`
	OnPath    bool      `json:"on_path"`
}

// IsLeaf は葉かどうか
func (n *TreeNode) IsLeaf() bool {
	return n.Yes == nil && n.No == nil
}

// Diagram は判定規則の静的な木を返す。呼ぶたびに新しい木を作る
func Diagram() *TreeNode {
	leaf := func(id string, label Outcome) *TreeNode {
		return &TreeNode{ID: id, Feature: "Result", Label: label}
	}
	return &TreeNode{
		ID: "attendance", Feature: "Attendance", Condition: "≥ 75%?",
		Yes: &TreeNode{
			ID: "assignments", Feature: "Assignments", Condition: "≥ 80%?",
			Yes: &TreeNode{
				ID: "test_high", Feature: "Test Score", Condition: "≥ 85%?",
				Yes: leaf("excellent", Excellent),
				No:  leaf("good", Good),
			},
			No: leaf("average_assignments", Average),
		},
		No: &TreeNode{
			ID: "test_low", Feature: "Test Score", Condition: "≥ 60%?",
			Yes: leaf("average_test", Average),
			No:  leaf("at_risk", AtRisk),
		},
	}
}

// Diagram は通過したノードに印を付けた木を返す
func (r DecisionResult) Diagram() *TreeNode {
	in := r.Input
	root := Diagram()
	root.OnPath = true
	var next *TreeNode
	if in.Attendance >= 75 {
		next = root.Yes
		next.OnPath = true
		if in.Assignments >= 80 {
			next = next.Yes
			next.OnPath = true
			if in.TestScore >= 85 {
				next = next.Yes
			} else {
				next = next.No
			}
		} else {
			next = next.No
		}
	} else {
		next = root.No
		next.OnPath = true
		if in.TestScore >= 60 {
			next = next.Yes
		} else {
			next = next.No
		}
	}
	next.OnPath = true
	return root
}

// Walk は木を前順に辿る
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int)) {
	var walk func(node *TreeNode, depth int)
	walk = func(node *TreeNode, depth int) {
		if node == nil {
			return
		}
		fn(node, depth)
		walk(node.Yes, depth+1)
		walk(node.No, depth+1)
	}
	walk(n, 0)
}
