package metrics

import (
	"math"

	"github.com/YuminosukeSato/rgf/pkg/errors"
)

// probEpsilon は log(0) を避けるための確率の下限
const probEpsilon = 1e-15

// BinaryLogLoss は二値分類の対数損失を計算する。yTrue は 0/1、prob は陽性確率。
func BinaryLogLoss(yTrue, prob []float64) (float64, error) {
	if err := checkPair("BinaryLogLoss", yTrue, prob); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range yTrue {
		p := errors.ClipValue(prob[i], probEpsilon, 1-probEpsilon)
		if y > 0 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(yTrue)), nil
}

// MultiLogLoss は多クラス分類の対数損失を計算する。
// prob はサンプル×クラスの行優先配列、yTrue はクラス番号。
func MultiLogLoss(yTrue, prob []float64, numClass int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("MultiLogLoss", "empty vector")
	}
	if numClass <= 0 || len(prob) != n*numClass {
		return 0, errors.NewDimensionError("MultiLogLoss", n*numClass, len(prob), 1)
	}
	var sum float64
	for i, y := range yTrue {
		k := int(y)
		if k < 0 || k >= numClass {
			return 0, errors.NewValueError("MultiLogLoss", "label out of range")
		}
		sum -= math.Log(math.Max(prob[i*numClass+k], probEpsilon))
	}
	return sum / float64(n), nil
}

// Accuracy は prob の最大クラスと yTrue の一致率を計算する。
func Accuracy(yTrue, prob []float64, numClass int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	if numClass <= 0 || len(prob) != n*numClass {
		return 0, errors.NewDimensionError("Accuracy", n*numClass, len(prob), 1)
	}
	correct := 0
	for i, y := range yTrue {
		best := 0
		for k := 1; k < numClass; k++ {
			if prob[i*numClass+k] > prob[i*numClass+best] {
				best = k
			}
		}
		if best == int(y) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
