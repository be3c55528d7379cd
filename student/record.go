package student

import (
	"bytes"
	"encoding/json"
	"math"
)

// DType は列の型。pandas の dtype 名に合わせる
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	Object  DType = "object"
)

// Column は列名と推定された型
type Column struct {
	Name string
	Type DType
}

// schema はデータセットの列定義を Record 間で共有する
type schema struct {
	columns []Column
	index   map[string]int
}

func newSchema(columns []Column) *schema {
	s := &schema{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		s.index[c.Name] = i
	}
	return s
}

// Record は列順を保った1行。値は float64、string、欠損は nil
type Record struct {
	schema *schema
	values []interface{}
}

// Keys は列名を列順で返す
func (r Record) Keys() []string {
	keys := make([]string, len(r.schema.columns))
	for i, c := range r.schema.columns {
		keys[i] = c.Name
	}
	return keys
}

// Get は列の値を返す
func (r Record) Get(name string) (interface{}, bool) {
	i, ok := r.schema.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Float は数値列の値を返す。欠損や文字列なら false
func (r Record) Float(name string) (float64, bool) {
	v, _ := r.Get(name)
	f, ok := v.(float64)
	return f, ok
}

// String は文字列列の値を返す
func (r Record) String(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

// Map は列名をキーにした map を返す
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, c := range r.schema.columns {
		m[c.Name] = r.values[i]
	}
	return m
}

// MarshalJSON は列順を保ってオブジェクトを書き出す
// int64 列の値は整数として、欠損は null として出力する
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.schema.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v interface{} = r.values[i]
		if f, ok := v.(float64); ok {
			switch {
			case math.IsNaN(f) || math.IsInf(f, 0):
				v = nil
			case c.Type == Int64:
				v = int64(f)
			}
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
