package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

// SaveModel はモデルの状態をgob形式でファイルに保存する
// 親ディレクトリが存在しない場合は作成する
//
// 使用例:
//
//	err := model.SaveModel(readout.Snapshot(), "checkpoints/exp/model.gob")
func SaveModel(model interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create checkpoint directory for %s", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(model); err != nil {
		return errors.Wrapf(err, "failed to encode model to %s", filename)
	}
	return file.Close()
}

// LoadModel はファイルからモデルの状態を読み込む
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
