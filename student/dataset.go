package student

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
)

const (
	// Separator は student-mat.csv の区切り文字
	Separator = ';'

	// GradeColumn は最終成績の列
	GradeColumn = "G3"

	// LabelColumn は G3 から付与する成績区分の列
	LabelColumn = "performance_label"

	// SexColumn は性別の列（"M" / "F"）
	SexColumn = "sex"
)

// Dataset は読み込んだ学生データ
type Dataset struct {
	schema  *schema
	Records []Record
}

// Load はファイルを読み込む。拡張子 .xlsx は最初のシート、それ以外は ';' 区切りの CSV
func Load(path string) (*Dataset, error) {
	logger := log.GetLoggerWithName("student")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrDatasetNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	var (
		ds  *Dataset
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		ds, err = loadXLSX(path)
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s", path)
		}
		defer f.Close()
		ds, err = Read(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	logger.Debug("dataset loaded",
		log.DatasetPathKey, path,
		log.SamplesKey, ds.Len(),
		"data.columns", len(ds.schema.columns),
	)
	return ds, nil
}

// Read は ';' 区切り、ヘッダ付きの CSV を読み込む
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = Separator
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CSV")
	}
	if len(rows) == 0 {
		return nil, errors.NewModelError("student.Read", "empty data", errors.ErrEmptyData)
	}
	return FromRows(rows[0], rows[1:])
}

func loadXLSX(path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewValueError("student.Load", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, errors.NewModelError("student.Load", "empty data", errors.ErrEmptyData)
	}
	// GetRows は末尾の空セルを省くので列数をそろえる
	width := len(rows[0])
	for i := 1; i < len(rows); i++ {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
	}
	return FromRows(rows[0], rows[1:])
}

// FromRows はヘッダと文字列の行からデータセットを作る
//
// 空でないセルがすべて数値として読める列は数値列になる
// （すべて整数で欠損がなければ int64、それ以外は float64）。その他は object。
// G3 から performance_label 列を末尾に追加する。
func FromRows(header []string, rows [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, errors.NewModelError("student.FromRows", "empty data", errors.ErrEmptyData)
	}
	columns := make([]Column, len(header))
	seen := make(map[string]bool, len(header))
	for j, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, errors.NewValueError("student.FromRows", "empty column name at position "+strconv.Itoa(j))
		}
		if seen[name] {
			return nil, errors.NewValueError("student.FromRows", "duplicate column "+name)
		}
		seen[name] = true
		columns[j] = Column{Name: name}
	}
	for _, row := range rows {
		if len(row) != len(header) {
			return nil, errors.NewDimensionError("student.FromRows", len(header), len(row), 1)
		}
	}

	values := make([][]interface{}, len(rows))
	for i := range values {
		values[i] = make([]interface{}, len(header)+1)
	}
	for j := range columns {
		columns[j].Type = inferType(rows, j)
		for i, row := range rows {
			values[i][j] = parseCell(row[j], columns[j].Type)
		}
	}

	g3 := -1
	for j, c := range columns {
		if c.Name == GradeColumn {
			g3 = j
		}
	}
	if g3 < 0 || columns[g3].Type == Object {
		return nil, errors.NewValueError("student.FromRows", "dataset needs a numeric G3 column")
	}
	for i := range values {
		// 欠損した G3 は比較がすべて偽になるので At-Risk
		grade, ok := values[i][g3].(float64)
		if !ok {
			grade = math.NaN()
		}
		values[i][len(header)] = string(LabelFromGrade(grade))
	}
	columns = append(columns, Column{Name: LabelColumn, Type: Object})

	s := newSchema(columns)
	ds := &Dataset{schema: s, Records: make([]Record, len(rows))}
	for i := range values {
		ds.Records[i] = Record{schema: s, values: values[i]}
	}
	return ds, nil
}

func inferType(rows [][]string, j int) DType {
	integral, missing, present := true, false, 0
	for _, row := range rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			missing = true
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Object
		}
		present++
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			integral = false
		}
	}
	if present > 0 && integral && !missing {
		return Int64
	}
	return Float64
}

func parseCell(cell string, t DType) interface{} {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if t == Object {
		return cell
	}
	v, _ := strconv.ParseFloat(cell, 64)
	return v
}

// Len はレコード数
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Columns は列定義を列順で返す
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.schema.columns...)
}

// ColumnNames は列名を列順で返す
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.schema.columns))
	for i, c := range d.schema.columns {
		names[i] = c.Name
	}
	return names
}

// Shape は（行数, 列数）
func (d *Dataset) Shape() [2]int {
	return [2]int{len(d.Records), len(d.schema.columns)}
}

// DTypes は列名ごとの型名
func (d *Dataset) DTypes() map[string]string {
	out := make(map[string]string, len(d.schema.columns))
	for _, c := range d.schema.columns {
		out[c.Name] = string(c.Type)
	}
	return out
}

// MissingValues は列名ごとの欠損数
func (d *Dataset) MissingValues() map[string]int {
	out := make(map[string]int, len(d.schema.columns))
	for j, c := range d.schema.columns {
		n := 0
		for _, r := range d.Records {
			if r.values[j] == nil {
				n++
			}
		}
		out[c.Name] = n
	}
	return out
}

// Column は数値列の欠損を除いた値を返す
func (d *Dataset) Column(name string) ([]float64, error) {
	j, ok := d.schema.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "unknown column", name)
	}
	if d.schema.columns[j].Type == Object {
		return nil, errors.NewValidationError("column", "not numeric", name)
	}
	out := make([]float64, 0, len(d.Records))
	for _, r := range d.Records {
		if v, ok := r.values[j].(float64); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Head は先頭 limit 件を返す。負の limit は末尾 |limit| 件を除いた残り
func (d *Dataset) Head(limit int) []Record {
	n := len(d.Records)
	switch {
	case limit < 0:
		limit = n + limit
		if limit < 0 {
			limit = 0
		}
	case limit > n:
		limit = n
	}
	return append([]Record(nil), d.Records[:limit]...)
}

// PerformanceDistribution は成績区分ごとの件数
func (d *Dataset) PerformanceDistribution() map[string]int {
	out := make(map[string]int)
	for _, r := range d.Records {
		out[r.String(LabelColumn)]++
	}
	return out
}

// TrainingData はモデル学習用の行列と目的変数
type TrainingData struct {
	X      *mat.Dense
	Grades []float64 // G3
	Labels []int     // Labels の番号
}

// TrainingData は特徴量と G3 がすべてそろった行から学習データを作る
func (d *Dataset) TrainingData() (*TrainingData, error) {
	cols := make([]int, len(FeatureNames))
	for i, name := range FeatureNames {
		j, ok := d.schema.index[name]
		if !ok {
			return nil, errors.NewValueError("student.TrainingData", "dataset has no column "+name)
		}
		if d.schema.columns[j].Type == Object {
			return nil, errors.NewValueError("student.TrainingData", "column "+name+" is not numeric")
		}
		cols[i] = j
	}
	g3 := d.schema.index[GradeColumn]

	var data, grades []float64
	var labels []int
	row := make([]float64, len(cols))
rows:
	for _, r := range d.Records {
		for i, j := range cols {
			v, ok := r.values[j].(float64)
			if !ok {
				continue rows
			}
			row[i] = v
		}
		grade, ok := r.values[g3].(float64)
		if !ok {
			continue
		}
		data = append(data, row...)
		grades = append(grades, grade)
		labels = append(labels, LabelFromGrade(grade).Code())
	}
	if len(grades) == 0 {
		return nil, errors.NewModelError("student.TrainingData", "empty data", errors.ErrEmptyData)
	}
	return &TrainingData{
		X:      mat.NewDense(len(grades), len(cols), data),
		Grades: grades,
		Labels: labels,
	}, nil
}
