package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// CVFold holds the row indices of one cross-validation fold.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into k consecutive folds, optionally shuffled with a
// seeded generator.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a KFold splitter. Fewer than 2 splits falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[currentIdx:currentIdx+testSize])

		testSet := make(map[int]bool, testSize)
		for _, idx := range testIndices {
			testSet[idx] = true
		}
		trainIndices := make([]int, 0, nSamples-testSize)
		for _, idx := range indices {
			if !testSet[idx] {
				trainIndices = append(trainIndices, idx)
			}
		}

		folds[i] = CVFold{TrainIndices: trainIndices, TestIndices: testIndices}
		currentIdx += testSize
	}
	return folds
}

// StratifiedKFold splits rows into k folds preserving per-class proportions,
// the splitter scikit-learn applies when cross-validating classifiers.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a StratifiedKFold splitter. Fewer than 2 splits
// falls back to 5.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	classIndices := make(map[float64][]int)
	var classOrder []float64
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		if _, ok := classIndices[label]; !ok {
			classOrder = append(classOrder, label)
		}
		classIndices[label] = append(classIndices[label], i)
	}

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
		for _, label := range classOrder {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for _, label := range classOrder {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		currentIdx := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			folds[i].TestIndices = append(folds[i].TestIndices, indices[currentIdx:currentIdx+testSize]...)
			currentIdx += testSize
		}
	}

	for i := range folds {
		testSet := make(map[int]bool, len(folds[i].TestIndices))
		for _, idx := range folds[i].TestIndices {
			testSet[idx] = true
		}
		for j := 0; j < nSamples; j++ {
			if !testSet[j] {
				folds[i].TrainIndices = append(folds[i].TrainIndices, j)
			}
		}
	}
	return folds
}

// CVResult stores per-fold cross-validation scores.
type CVResult struct {
	Scores []float64
}

// GetMeanScore returns the mean fold score.
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.Scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, score := range cv.Scores {
		sum += score
	}
	return sum / float64(len(cv.Scores))
}

// GetStdScore returns the sample standard deviation of the fold scores.
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.Scores) <= 1 {
		return 0.0
	}
	mean := cv.GetMeanScore()
	sumSq := 0.0
	for _, score := range cv.Scores {
		diff := score - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(cv.Scores)-1))
}

// CrossValScore trains a fresh estimator from factory on each fold and
// scores it on the held-out rows. Folds run concurrently.
func CrossValScore(factory func() model.Classifier, X, y mat.Matrix, splitter Splitter) (*CVResult, error) {
	folds := splitter.Split(X, y)
	for i, fold := range folds {
		if len(fold.TrainIndices) == 0 || len(fold.TestIndices) == 0 {
			return nil, errors.NewValueError("training.CrossValScore",
				fmt.Sprintf("more folds than samples leaves fold %d empty", i))
		}
	}

	result := &CVResult{Scores: make([]float64, len(folds))}

	var wg sync.WaitGroup
	errs := make([]error, len(folds))
	for foldIdx := range folds {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer errors.Recover(&errs[idx], "training.CrossValScore")

			fold := folds[idx]
			trainX, trainY := extractSubset(X, y, fold.TrainIndices)
			testX, testY := extractSubset(X, y, fold.TestIndices)

			clf := factory()
			if err := clf.Fit(trainX, trainY); err != nil {
				errs[idx] = errors.Wrapf(err, "fold %d training failed", idx)
				return
			}
			score, err := clf.Score(testX, testY)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "fold %d scoring failed", idx)
				return
			}
			result.Scores[idx] = score
		}(foldIdx)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
