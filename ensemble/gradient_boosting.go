package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

// sigmoid maps a raw boosting score to a probability.
func sigmoid(z float64) float64 {
	return 1 / (1 + errors.StabilizeExp(-z))
}

// updateLeaves walks every training index to its leaf and replaces each leaf
// value with gamma over the samples that landed there.
func updateLeaves(root *TreeNode, X mat.Matrix, indices []int, gamma func(samples []int) float64) {
	_, cols := X.Dims()
	x := make([]float64, cols)

	groups := make(map[*TreeNode][]int)
	for _, i := range indices {
		rowTo(X, i, x)
		leaf := root.apply(x)
		groups[leaf] = append(groups[leaf], i)
	}
	for leaf, samples := range groups {
		leaf.Value = []float64{gamma(samples)}
	}
}

// subsampleIndices draws a fraction of [0, n) without replacement, or all of
// it when fraction >= 1.
func subsampleIndices(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	m := int(fraction * float64(n))
	if m < 1 {
		m = 1
	}
	return rng.Perm(n)[:m]
}

// GradientBoostingRegressor fits shallow regression trees to the residuals
// of a squared-error loss, shrinking each tree's contribution by the
// learning rate.
type GradientBoostingRegressor struct {
	model.StateManager

	// Hyperparameters
	NEstimators     int     // Number of boosting stages
	LearningRate    float64 // Shrinkage applied to each tree
	MaxDepth        int     // Depth of the individual trees
	MinSamplesSplit int
	MinSamplesLeaf  int
	Subsample       float64 // Row fraction drawn per stage
	RandomState     int

	// Fitted state
	InitValue   float64 // Mean of the training targets
	Roots       []*TreeNode
	NFeatures   int
	Importances []float64
}

// NewGradientBoostingRegressor creates a regressor with scikit-learn
// compatible defaults.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting stages.
func (gb *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	gb.NEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage factor.
func (gb *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	gb.LearningRate = lr
	return gb
}

// WithMaxDepth sets the depth of the individual trees.
func (gb *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	gb.MaxDepth = d
	return gb
}

// WithRandomState sets the random seed.
func (gb *GradientBoostingRegressor) WithRandomState(seed int) *GradientBoostingRegressor {
	gb.RandomState = seed
	return gb
}

// Fit runs the boosting stages on X and the targets in the single column
// of y.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GradientBoostingRegressor.Fit")
	}
	if rows != yRows {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", 1, yCols, 1)
	}
	if gb.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", gb.NEstimators)
	}

	var mean float64
	for i := 0; i < rows; i++ {
		mean += y.At(i, 0)
	}
	mean /= float64(rows)
	gb.InitValue = mean
	gb.NFeatures = cols

	rng := rand.New(rand.NewPCG(uint64(gb.RandomState), uint64(gb.RandomState)))

	F := make([]float64, rows)
	for i := range F {
		F[i] = mean
	}
	residuals := make([]float64, rows)
	x := make([]float64, cols)

	roots := make([]*TreeNode, 0, gb.NEstimators)
	parts := make([][]float64, 0, gb.NEstimators)

	for stage := 0; stage < gb.NEstimators; stage++ {
		for i := 0; i < rows; i++ {
			residuals[i] = y.At(i, 0) - F[i]
		}
		fitIdx := subsampleIndices(rows, gb.Subsample, rng)

		builder := newTreeBuilder("mse", gb.MaxDepth, gb.MinSamplesSplit,
			gb.MinSamplesLeaf, 0, 0, cols, rng)
		root := builder.fit(X, residuals, fitIdx)

		for i := 0; i < rows; i++ {
			rowTo(X, i, x)
			F[i] += gb.LearningRate * root.apply(x).Value[0]
		}

		roots = append(roots, root)
		parts = append(parts, builder.normalizedImportances())
	}

	gb.Roots = roots
	gb.Importances = averageImportances(parts, cols)

	trainMSE := 0.0
	for i := 0; i < rows; i++ {
		diff := y.At(i, 0) - F[i]
		trainMSE += diff * diff
	}
	log.GetLoggerWithName("ensemble.gbm").Debug("boosting finished",
		log.AlgorithmKey, "gradient_boosting",
		log.SamplesKey, rows,
		"stages", gb.NEstimators,
		log.LossKey, trainMSE/float64(rows))

	gb.SetDimensions(cols, rows)
	gb.SetFitted()
	return nil
}

// Predict returns the boosted prediction for each row of X.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.NFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		rowTo(X, i, x)
		pred := gb.InitValue
		for _, root := range gb.Roots {
			pred += gb.LearningRate * root.apply(x).Value[0]
		}
		out.Set(i, 0, pred)
	}
	return out, nil
}

// Score returns the coefficient of determination on X against y.
func (gb *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !gb.IsFitted() {
		return 0, errors.NewNotFittedError("GradientBoostingRegressor", "Score")
	}

	preds, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, preds.At(i, 0))
	}
	return metrics.R2Score(yVec, predVec)
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (gb *GradientBoostingRegressor) FeatureImportances() []float64 {
	out := make([]float64, len(gb.Importances))
	copy(out, gb.Importances)
	return out
}

// GetParams returns the regressor hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      gb.NEstimators,
		"learning_rate":     gb.LearningRate,
		"max_depth":         gb.MaxDepth,
		"min_samples_split": gb.MinSamplesSplit,
		"min_samples_leaf":  gb.MinSamplesLeaf,
		"subsample":         gb.Subsample,
		"random_state":      gb.RandomState,
	}
}

// SetParams updates hyperparameters from a map. Unknown keys are rejected.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.NEstimators = v
		case "learning_rate":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			gb.LearningRate = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MaxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MinSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MinSamplesLeaf = v
		case "subsample":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			gb.Subsample = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.RandomState = v
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}

// GradientBoostingClassifier boosts regression trees on the gradient of the
// log loss. Binary problems train one tree per stage on the log odds;
// multiclass problems train one tree per class per stage on softmax raw
// scores.
type GradientBoostingClassifier struct {
	model.StateManager

	// Hyperparameters
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Subsample       float64
	RandomState     int

	// Fitted state. Roots is indexed [stage][class contribution]; binary
	// fits keep a single contribution per stage.
	InitRaw     []float64
	Roots       [][]*TreeNode
	ClassValues []float64
	NFeatures   int
	Importances []float64
}

// NewGradientBoostingClassifier creates a classifier with scikit-learn
// compatible defaults.
func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting stages.
func (gb *GradientBoostingClassifier) WithNEstimators(n int) *GradientBoostingClassifier {
	gb.NEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage factor.
func (gb *GradientBoostingClassifier) WithLearningRate(lr float64) *GradientBoostingClassifier {
	gb.LearningRate = lr
	return gb
}

// WithMaxDepth sets the depth of the individual trees.
func (gb *GradientBoostingClassifier) WithMaxDepth(d int) *GradientBoostingClassifier {
	gb.MaxDepth = d
	return gb
}

// WithRandomState sets the random seed.
func (gb *GradientBoostingClassifier) WithRandomState(seed int) *GradientBoostingClassifier {
	gb.RandomState = seed
	return gb
}

// Fit runs the boosting stages on X and the labels in the single column
// of y.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GradientBoostingClassifier.Fit")
	}
	if rows != yRows {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", 1, yCols, 1)
	}
	if gb.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", gb.NEstimators)
	}

	classes, encoded := sortedClasses(y)
	gb.ClassValues = classes
	gb.NFeatures = cols
	nClasses := len(classes)
	if nClasses < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "training data contains a single class")
	}

	rng := rand.New(rand.NewPCG(uint64(gb.RandomState), uint64(gb.RandomState)))

	if nClasses == 2 {
		err = gb.fitBinary(X, encoded, rows, cols, rng)
	} else {
		err = gb.fitMulticlass(X, encoded, rows, cols, nClasses, rng)
	}
	if err != nil {
		return err
	}

	gb.SetDimensions(cols, rows)
	gb.SetFitted()
	return nil
}

func (gb *GradientBoostingClassifier) fitBinary(X mat.Matrix, y01 []float64, rows, cols int, rng *rand.Rand) error {
	var pos float64
	for _, v := range y01 {
		pos += v
	}
	prior := errors.ClipValue(pos/float64(rows), 1e-10, 1-1e-10)
	f0 := errors.StabilizeLog(prior) - errors.StabilizeLog(1-prior)
	gb.InitRaw = []float64{f0}

	F := make([]float64, rows)
	for i := range F {
		F[i] = f0
	}
	p := make([]float64, rows)
	residuals := make([]float64, rows)
	x := make([]float64, cols)

	roots := make([][]*TreeNode, 0, gb.NEstimators)
	parts := make([][]float64, 0, gb.NEstimators)

	for stage := 0; stage < gb.NEstimators; stage++ {
		for i := 0; i < rows; i++ {
			p[i] = sigmoid(F[i])
			residuals[i] = y01[i] - p[i]
		}
		fitIdx := subsampleIndices(rows, gb.Subsample, rng)

		builder := newTreeBuilder("mse", gb.MaxDepth, gb.MinSamplesSplit,
			gb.MinSamplesLeaf, 0, 0, cols, rng)
		root := builder.fit(X, residuals, fitIdx)

		// Newton step per leaf for the log loss.
		updateLeaves(root, X, fitIdx, func(samples []int) float64 {
			var num, den float64
			for _, s := range samples {
				num += residuals[s]
				den += p[s] * (1 - p[s])
			}
			return errors.SafeDivide(num, den)
		})

		for i := 0; i < rows; i++ {
			rowTo(X, i, x)
			F[i] += gb.LearningRate * root.apply(x).Value[0]
		}

		roots = append(roots, []*TreeNode{root})
		parts = append(parts, builder.normalizedImportances())
	}

	gb.Roots = roots
	gb.Importances = averageImportances(parts, cols)

	yVec := mat.NewVecDense(rows, y01)
	pVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		pVec.SetVec(i, sigmoid(F[i]))
	}
	if loss, lossErr := metrics.BinaryLogLoss(yVec, pVec); lossErr == nil {
		log.GetLoggerWithName("ensemble.gbm").Debug("boosting finished",
			log.AlgorithmKey, "gradient_boosting",
			log.SamplesKey, rows,
			"stages", gb.NEstimators,
			log.LossKey, loss)
	}
	return nil
}

func (gb *GradientBoostingClassifier) fitMulticlass(X mat.Matrix, encoded []float64, rows, cols, nClasses int, rng *rand.Rand) error {
	counts := make([]float64, nClasses)
	for _, v := range encoded {
		counts[int(v)]++
	}
	gb.InitRaw = make([]float64, nClasses)
	for k := range gb.InitRaw {
		gb.InitRaw[k] = errors.StabilizeLog(counts[k] / float64(rows))
	}

	F := make([][]float64, rows)
	for i := range F {
		F[i] = make([]float64, nClasses)
		copy(F[i], gb.InitRaw)
	}
	p := make([][]float64, rows)
	for i := range p {
		p[i] = make([]float64, nClasses)
	}
	residuals := make([]float64, rows)
	x := make([]float64, cols)

	roots := make([][]*TreeNode, 0, gb.NEstimators)
	var parts [][]float64

	for stage := 0; stage < gb.NEstimators; stage++ {
		for i := 0; i < rows; i++ {
			lse := errors.LogSumExp(F[i])
			for k := 0; k < nClasses; k++ {
				p[i][k] = errors.StabilizeExp(F[i][k] - lse)
			}
		}
		fitIdx := subsampleIndices(rows, gb.Subsample, rng)

		stageRoots := make([]*TreeNode, nClasses)
		for k := 0; k < nClasses; k++ {
			for i := 0; i < rows; i++ {
				indicator := 0.0
				if int(encoded[i]) == k {
					indicator = 1.0
				}
				residuals[i] = indicator - p[i][k]
			}

			builder := newTreeBuilder("mse", gb.MaxDepth, gb.MinSamplesSplit,
				gb.MinSamplesLeaf, 0, 0, cols, rng)
			root := builder.fit(X, residuals, fitIdx)

			updateLeaves(root, X, fitIdx, func(samples []int) float64 {
				var num, den float64
				for _, s := range samples {
					r := residuals[s]
					num += r
					absR := r
					if absR < 0 {
						absR = -absR
					}
					den += absR * (1 - absR)
				}
				factor := float64(nClasses-1) / float64(nClasses)
				return factor * errors.SafeDivide(num, den)
			})

			for i := 0; i < rows; i++ {
				rowTo(X, i, x)
				F[i][k] += gb.LearningRate * root.apply(x).Value[0]
			}

			stageRoots[k] = root
			parts = append(parts, builder.normalizedImportances())
		}
		roots = append(roots, stageRoots)
	}

	gb.Roots = roots
	gb.Importances = averageImportances(parts, cols)
	return nil
}

// rawScores computes the boosting scores for one sample.
func (gb *GradientBoostingClassifier) rawScores(x []float64) []float64 {
	if len(gb.InitRaw) == 1 {
		raw := gb.InitRaw[0]
		for _, stage := range gb.Roots {
			raw += gb.LearningRate * stage[0].apply(x).Value[0]
		}
		return []float64{raw}
	}

	raw := make([]float64, len(gb.InitRaw))
	copy(raw, gb.InitRaw)
	for _, stage := range gb.Roots {
		for k, root := range stage {
			raw[k] += gb.LearningRate * root.apply(x).Value[0]
		}
	}
	return raw
}

// PredictProba returns class probabilities, one column per class in
// ascending label order.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.PredictProba", gb.NFeatures, cols, 1)
	}

	nClasses := len(gb.ClassValues)
	out := mat.NewDense(rows, nClasses, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		rowTo(X, i, x)
		raw := gb.rawScores(x)

		if len(raw) == 1 {
			p := sigmoid(raw[0])
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}

		lse := errors.LogSumExp(raw)
		for k := 0; k < nClasses; k++ {
			out.Set(i, k, errors.StabilizeExp(raw[k]-lse))
		}
	}
	return out, nil
}

// Predict returns the class with the highest probability for each row of X.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, nClasses := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		bestK, bestP := 0, proba.At(i, 0)
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > bestP {
				bestK, bestP = k, proba.At(i, k)
			}
		}
		out.Set(i, 0, gb.ClassValues[bestK])
	}
	return out, nil
}

// Score returns the accuracy of the classifier on X against the labels in y.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (float64, error) {
	if !gb.IsFitted() {
		return 0, errors.NewNotFittedError("GradientBoostingClassifier", "Score")
	}

	preds, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yVec := mat.NewVecDense(rows, nil)
	predVec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yVec.SetVec(i, y.At(i, 0))
		predVec.SetVec(i, preds.At(i, 0))
	}
	return metrics.Accuracy(yVec, predVec)
}

// Classes returns the class labels in ascending order.
func (gb *GradientBoostingClassifier) Classes() []float64 {
	out := make([]float64, len(gb.ClassValues))
	copy(out, gb.ClassValues)
	return out
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (gb *GradientBoostingClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(gb.Importances))
	copy(out, gb.Importances)
	return out
}

// GetParams returns the classifier hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      gb.NEstimators,
		"learning_rate":     gb.LearningRate,
		"max_depth":         gb.MaxDepth,
		"min_samples_split": gb.MinSamplesSplit,
		"min_samples_leaf":  gb.MinSamplesLeaf,
		"subsample":         gb.Subsample,
		"random_state":      gb.RandomState,
	}
}

// SetParams updates hyperparameters from a map. Unknown keys are rejected.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.NEstimators = v
		case "learning_rate":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			gb.LearningRate = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MaxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MinSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.MinSamplesLeaf = v
		case "subsample":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			gb.Subsample = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			gb.RandomState = v
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}
