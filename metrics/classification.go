// Package metrics provides evaluation metrics for classification and
// regression models.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// Accuracy computes the fraction of predictions that match the true labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("Accuracy", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError computes the fraction of misclassified samples,
// i.e. 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AUC computes the area under the ROC curve for binary labels (0/1) using the
// rank statistic with average ranks for ties. When only one class is present
// the metric is undefined and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUC", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("AUC", n, yPred.Len(), 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
		if label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		// Undefined case, returns 0.5
		return 0.5, nil
	}

	// Rank predictions ascending, averaging ranks across ties.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		// Average rank for the tie group [i, j], ranks are 1-based.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var sumPosRanks float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			sumPosRanks += ranks[i]
		}
	}

	u := sumPosRanks - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix computes AUC from n x 1 matrices (or the first column of wider
// matrices).
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}
	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss computes the negative log-likelihood of binary labels under
// predicted probabilities. Probabilities are clipped away from 0 and 1.
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("BinaryLogLoss", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("BinaryLogLoss", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("BinaryLogLoss", n, yPred.Len(), 0)
	}

	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		label := yTrue.AtVec(i)
		if label != 0 && label != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be binary (0 or 1)")
		}
		p := errors.ClipValue(yPred.AtVec(i), eps, 1-eps)
		if label == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ConfusionMatrix computes the confusion matrix over the union of labels seen
// in either vector. Rows are true classes and columns predicted classes, both
// ordered by ascending label. The label order is returned alongside the counts.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) ([][]int, []float64, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "empty vector")
	}
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError("ConfusionMatrix", n, yPred.Len(), 0)
	}

	seen := make(map[float64]struct{})
	for i := 0; i < n; i++ {
		seen[yTrue.AtVec(i)] = struct{}{}
		seen[yPred.AtVec(i)] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	index := make(map[float64]int, len(labels))
	for i, label := range labels {
		index[label] = i
	}

	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		cm[index[yTrue.AtVec(i)]][index[yPred.AtVec(i)]]++
	}
	return cm, labels, nil
}

// PrecisionRecallF1 computes precision, recall and F1 aggregated across
// classes. Supported averages are "weighted" (support-weighted, the default
// for training reports) and "macro". Per-class scores with zero denominators
// contribute 0 and raise an UndefinedMetricWarning.
func PrecisionRecallF1(yTrue, yPred *mat.VecDense, average string) (precision, recall, f1 float64, err error) {
	if average != "weighted" && average != "macro" {
		return 0, 0, 0, errors.NewValueError("PrecisionRecallF1", "average must be 'weighted' or 'macro'")
	}

	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	n := yTrue.Len()

	for i := range labels {
		var tp, fp, fn, support int
		tp = cm[i][i]
		for j := range labels {
			if j != i {
				fp += cm[j][i]
				fn += cm[i][j]
			}
			support += cm[i][j]
		}

		var p, r float64
		if tp+fp == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		} else {
			p = float64(tp) / float64(tp+fp)
		}
		if tp+fn == 0 {
			if support > 0 {
				errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
			}
		} else {
			r = float64(tp) / float64(tp+fn)
		}
		f := 2 * errors.SafeDivide(p*r, p+r)

		var weight float64
		switch average {
		case "weighted":
			weight = float64(support) / float64(n)
		case "macro":
			weight = 1 / float64(len(labels))
		}
		precision += weight * p
		recall += weight * r
		f1 += weight * f
	}

	return precision, recall, f1, nil
}

// ClassificationReport bundles the standard evaluation metrics for a
// classifier on one dataset.
type ClassificationReport struct {
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	ConfusionMatrix [][]int
	Labels          []float64
}

// Report computes a full classification report with weighted precision,
// recall and F1.
func Report(yTrue, yPred *mat.VecDense) (*ClassificationReport, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	precision, recall, f1, err := PrecisionRecallF1(yTrue, yPred, "weighted")
	if err != nil {
		return nil, err
	}
	cm, labels, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return &ClassificationReport{
		Accuracy:        acc,
		Precision:       precision,
		Recall:          recall,
		F1:              f1,
		ConfusionMatrix: cm,
		Labels:          labels,
	}, nil
}
