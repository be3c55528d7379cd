package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 親ディレクトリが無ければ作成し、一時ファイルに書き込んでからリネームする。
// 書き込み途中のファイルが読み込まれることはない。
//
// 使用例:
//
//	reg := linear.NewLinearRegression()
//	// ... モデルの学習 ...
//	err := model.SaveModel(reg, "artifacts/linear_regression.gob")
func SaveModel(model interface{}, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	tmpName := tmp.Name()

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合、戻り値は errors.Is(err, os.ErrNotExist) を満たす。
//
// 使用例:
//
//	reg := linear.NewLinearRegression()
//	err := model.LoadModel(reg, "artifacts/linear_regression.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
