package student

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// ExportHeaders は CSV/XLSX エクスポートの列（この順で出力する）
var ExportHeaders = []string{
	"Age", "Gender", "Mother_Education", "Father_Education", "Study_Time",
	"Failures", "Absences", "G1", "G2", "G3", "Performance_Label",
}

// exportSources は ExportHeaders に対応する元の列。Gender は sex から作る
var exportSources = []string{
	"age", SexColumn, "Medu", "Fedu", "studytime",
	"failures", "absences", "G1", "G2", GradeColumn, LabelColumn,
}

// ExportFilename はダウンロード時のファイル名（拡張子なし）
const ExportFilename = "student_performance_data"

// Gender は sex == "M" なら Male、それ以外は Female
func Gender(sex string) string {
	if sex == "M" {
		return "Male"
	}
	return "Female"
}

// exportRow はレコードをエクスポート列の値に変換する。欠損は nil
func exportRow(r Record) []interface{} {
	row := make([]interface{}, len(exportSources))
	for i, col := range exportSources {
		if col == SexColumn {
			row[i] = Gender(r.String(SexColumn))
			continue
		}
		v, _ := r.Get(col)
		row[i] = v
	}
	return row
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return ""
	}
}

// WriteCSV はレコードを ExportHeaders の列で CSV に書き出す（1レコード1行）
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	line := make([]string, len(ExportHeaders))
	for _, r := range records {
		for i, v := range exportRow(r) {
			line[i] = formatCell(v)
		}
		if err := cw.Write(line); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

// ExportSheet は XLSX エクスポートのシート名
const ExportSheet = "Students"

// WriteXLSX はレコードを 1 シートのワークブックとして書き出す
// 数値は数値セル、欠損は空セルになる
func WriteXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}
	header := make([]interface{}, len(ExportHeaders))
	for i, h := range ExportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write header row")
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "invalid cell")
		}
		row := exportRow(r)
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}
