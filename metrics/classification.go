package metrics

import (
	"github.com/YuminosukeSato/scnnexp/core/model"
	"github.com/YuminosukeSato/scnnexp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正しく分類されたサンプルの割合を計算する
func Accuracy(yTrue, yPred []int) (float64, error) {
	errRate, err := ErrorRate(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - errRate, nil
}

// ErrorRate は誤分類されたサンプルの割合を計算する（範囲 [0, 1]）
func ErrorRate(yTrue, yPred []int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("ErrorRate", "empty labels")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("ErrorRate", n, len(yPred), 0)
	}

	wrong := 0
	for i := range yTrue {
		if yTrue[i] != yPred[i] {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}

// LogLoss は交差エントロピー損失の平均を計算する
// proba は n_samples × n_classes のクラス確率行列
func LogLoss(yTrue []int, proba mat.Matrix) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty labels")
	}
	r, c := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("LogLoss", n, r, 0)
	}

	var sum float64
	for i, y := range yTrue {
		if y < 0 || y >= c {
			return 0, errors.NewValueError("LogLoss", "label out of range of probability columns")
		}
		sum -= errors.StabilizeLog(proba.At(i, y))
	}
	return sum / float64(n), nil
}

// ModelError はモデルの予測に対する誤分類率を返す
//
// 使用例:
//
//	errTest, err := metrics.ModelError(m, featuresTest, labelsTest)
//	fmt.Printf("The testing error is %v%%\n", errTest*100)
func ModelError(p model.Predictor, X mat.Matrix, labels []int) (float64, error) {
	r, _ := X.Dims()
	if r != len(labels) {
		return 0, errors.NewDimensionError("ModelError", len(labels), r, 0)
	}
	pred, err := p.Predict(X)
	if err != nil {
		return 0, errors.Wrap(err, "predict")
	}
	return ErrorRate(labels, pred)
}
