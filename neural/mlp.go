// Package neural provides a multilayer perceptron classifier trained with
// full-batch gradient descent.
package neural

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/metrics"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

const maxGradNorm = 5.0

// MLPClassifier is a feed-forward network with ReLU hidden layers and a
// softmax output, trained by full-batch gradient descent on the cross-entropy
// loss with L2 weight decay.
//
// Weight layer l maps LayerSizes[l] inputs to LayerSizes[l+1] outputs and is
// stored flat, indexed input*outDim+output. Fitted state is exported so the
// model survives gob encoding.
type MLPClassifier struct {
	model.StateManager

	hidden       []int
	alpha        float64
	learningRate float64
	maxIter      int
	tol          float64
	randomState  int64

	LayerSizes  []int
	Weights     [][]float64
	Biases      [][]float64
	ClassValues []float64
	NFeatures   int
	NIters      int
	LossCurve   []float64
}

// MLPOption configures an MLPClassifier.
type MLPOption func(*MLPClassifier)

// WithMLPHiddenLayers sets the sizes of the hidden layers.
func WithMLPHiddenLayers(sizes ...int) MLPOption {
	return func(m *MLPClassifier) {
		m.hidden = sizes
	}
}

// WithMLPAlpha sets the L2 weight decay strength.
func WithMLPAlpha(alpha float64) MLPOption {
	return func(m *MLPClassifier) {
		m.alpha = alpha
	}
}

// WithMLPLearningRate sets the gradient descent step size.
func WithMLPLearningRate(rate float64) MLPOption {
	return func(m *MLPClassifier) {
		m.learningRate = rate
	}
}

// WithMLPMaxIter sets the maximum number of training iterations.
func WithMLPMaxIter(maxIter int) MLPOption {
	return func(m *MLPClassifier) {
		m.maxIter = maxIter
	}
}

// WithMLPTol sets the loss improvement below which training stops.
func WithMLPTol(tol float64) MLPOption {
	return func(m *MLPClassifier) {
		m.tol = tol
	}
}

// WithMLPRandomState sets the seed for weight initialization.
func WithMLPRandomState(seed int64) MLPOption {
	return func(m *MLPClassifier) {
		m.randomState = seed
	}
}

// NewMLPClassifier creates an MLPClassifier with the given options.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		hidden:       []int{100},
		alpha:        1e-4,
		learningRate: 0.1,
		maxIter:      200,
		tol:          1e-4,
		randomState:  42,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit trains the network on X (samples x features) and y (samples x 1).
func (m *MLPClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPClassifier.Fit")

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "MLPClassifier.Fit")
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("MLPClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("MLPClassifier.Fit", 1, yCols, 1)
	}
	for _, size := range m.hidden {
		if size <= 0 {
			return errors.NewValidationError("hidden_layer_sizes", "layer sizes must be positive", size)
		}
	}
	if m.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", m.maxIter)
	}

	classes := labelValues(y)
	nClasses := len(classes)
	m.ClassValues = classes
	m.NFeatures = cols

	classIdx := make(map[float64]int, nClasses)
	for k, c := range classes {
		classIdx[c] = k
	}
	targets := make([]int, rows)
	for i := 0; i < rows; i++ {
		targets[i] = classIdx[y.At(i, 0)]
	}

	m.LayerSizes = make([]int, 0, len(m.hidden)+2)
	m.LayerSizes = append(m.LayerSizes, cols)
	m.LayerSizes = append(m.LayerSizes, m.hidden...)
	m.LayerSizes = append(m.LayerSizes, nClasses)
	m.initializeNetwork()

	nLayers := len(m.Weights)
	gradW := make([][]float64, nLayers)
	gradB := make([][]float64, nLayers)
	for l := range gradW {
		gradW[l] = make([]float64, len(m.Weights[l]))
		gradB[l] = make([]float64, len(m.Biases[l]))
	}

	x := make([]float64, cols)
	n := float64(rows)
	m.LossCurve = m.LossCurve[:0]
	prevLoss := math.Inf(1)
	converged := false

	for iter := 0; iter < m.maxIter; iter++ {
		for l := range gradW {
			for j := range gradW[l] {
				gradW[l][j] = 0
			}
			for j := range gradB[l] {
				gradB[l][j] = 0
			}
		}

		loss := 0.0
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				x[j] = X.At(i, j)
			}
			acts, zs := m.forward(x)

			out := zs[nLayers-1]
			lse := errors.LogSumExp(out)
			loss += lse - out[targets[i]]

			// Output delta is softmax probability minus the one-hot target.
			delta := make([]float64, nClasses)
			for k := range delta {
				delta[k] = errors.StabilizeExp(out[k] - lse)
			}
			delta[targets[i]] -= 1

			for l := nLayers - 1; l >= 0; l-- {
				in := acts[l]
				outDim := m.LayerSizes[l+1]
				for h, a := range in {
					if a == 0 {
						continue
					}
					for k, d := range delta {
						gradW[l][h*outDim+k] += a * d
					}
				}
				for k, d := range delta {
					gradB[l][k] += d
				}
				if l > 0 {
					next := make([]float64, len(in))
					for h := range in {
						if zs[l-1][h] > 0 {
							s := 0.0
							for k, d := range delta {
								s += d * m.Weights[l][h*outDim+k]
							}
							next[h] = s
						}
					}
					delta = next
				}
			}
		}

		sumSq := 0.0
		for l := range m.Weights {
			for _, w := range m.Weights[l] {
				sumSq += w * w
			}
		}
		loss = loss/n + 0.5*m.alpha*sumSq/n
		m.LossCurve = append(m.LossCurve, loss)

		for l := range m.Weights {
			for j := range gradW[l] {
				gradW[l][j] = gradW[l][j]/n + m.alpha*m.Weights[l][j]/n
			}
			for j := range gradB[l] {
				gradB[l][j] /= n
			}
			wStep := errors.ClipGradient(gradW[l], maxGradNorm)
			bStep := errors.ClipGradient(gradB[l], maxGradNorm)
			for j := range m.Weights[l] {
				m.Weights[l][j] -= m.learningRate * wStep[j]
			}
			for j := range m.Biases[l] {
				m.Biases[l][j] -= m.learningRate * bStep[j]
			}
		}

		m.NIters = iter + 1
		if math.Abs(prevLoss-loss) < m.tol {
			converged = true
			break
		}
		prevLoss = loss
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("neural_network", m.maxIter,
			"gradient descent reached max_iter before the loss stabilized"))
	}

	m.SetDimensions(cols, rows)
	m.SetFitted()

	log.GetLoggerWithName("neural.mlp").Debug("training finished",
		log.AlgorithmKey, "neural_network",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, nClasses,
		log.LossKey, m.LossCurve[len(m.LossCurve)-1],
		"iterations", m.NIters)
	return nil
}

// initializeNetwork allocates weights with scaled uniform noise and zero
// biases.
func (m *MLPClassifier) initializeNetwork() {
	rng := rand.New(rand.NewPCG(uint64(m.randomState), uint64(m.randomState)))

	nLayers := len(m.LayerSizes) - 1
	m.Weights = make([][]float64, nLayers)
	m.Biases = make([][]float64, nLayers)
	for l := 0; l < nLayers; l++ {
		in, out := m.LayerSizes[l], m.LayerSizes[l+1]
		w := make([]float64, in*out)
		scale := math.Sqrt(2.0 / float64(in))
		for j := range w {
			w[j] = (rng.Float64() - 0.5) * scale
		}
		m.Weights[l] = w
		m.Biases[l] = make([]float64, out)
	}
}

// forward computes one sample's activations. acts[l] is the input to weight
// layer l; zs[l] is its pre-activation output. The final layer stays raw for
// the softmax.
func (m *MLPClassifier) forward(x []float64) (acts, zs [][]float64) {
	nLayers := len(m.Weights)
	acts = make([][]float64, nLayers)
	zs = make([][]float64, nLayers)

	a := x
	for l := 0; l < nLayers; l++ {
		acts[l] = a
		outDim := m.LayerSizes[l+1]
		z := make([]float64, outDim)
		copy(z, m.Biases[l])
		for h, v := range a {
			if v == 0 {
				continue
			}
			for k := 0; k < outDim; k++ {
				z[k] += v * m.Weights[l][h*outDim+k]
			}
		}
		zs[l] = z

		if l < nLayers-1 {
			hidden := make([]float64, outDim)
			for k, v := range z {
				hidden[k] = math.Max(0, v)
			}
			a = hidden
		}
	}
	return acts, zs
}

// Predict returns the class label with the highest probability for each row.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}

	rows, nClasses := proba.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < nClasses; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		predictions.Set(i, 0, m.ClassValues[best])
	}
	return predictions, nil
}

// PredictProba returns a samples x classes matrix of softmax probabilities.
func (m *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MLPClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != m.NFeatures {
		return nil, errors.NewDimensionError("MLPClassifier.PredictProba", m.NFeatures, cols, 1)
	}

	nClasses := len(m.ClassValues)
	proba := mat.NewDense(rows, nClasses, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x[j] = X.At(i, j)
		}
		_, zs := m.forward(x)
		out := zs[len(zs)-1]
		lse := errors.LogSumExp(out)
		for k := 0; k < nClasses; k++ {
			proba.Set(i, k, errors.StabilizeExp(out[k]-lse))
		}
	}
	return proba, nil
}

// Score returns the accuracy of predictions on X against y.
func (m *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	if !m.IsFitted() {
		return 0, errors.NewNotFittedError("MLPClassifier", "Score")
	}

	preds, err := m.Predict(X)
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
func (m *MLPClassifier) Classes() []float64 {
	out := make([]float64, len(m.ClassValues))
	copy(out, m.ClassValues)
	return out
}

// GetParams returns the hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	hidden := make([]int, len(m.hidden))
	copy(hidden, m.hidden)
	return map[string]interface{}{
		"hidden_layer_sizes": hidden,
		"alpha":              m.alpha,
		"learning_rate_init": m.learningRate,
		"max_iter":           m.maxIter,
		"tol":                m.tol,
		"random_state":       m.randomState,
	}
}

// SetParams updates hyperparameters from a map, typically decoded from JSON.
// Unknown keys are rejected.
func (m *MLPClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "hidden_layer_sizes":
			sizes, ok := toIntSlice(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer or list of integers", value)
			}
			m.hidden = sizes
		case "alpha":
			f, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			m.alpha = f
		case "learning_rate_init":
			f, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			m.learningRate = f
		case "max_iter":
			n, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			m.maxIter = n
		case "tol":
			f, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			m.tol = f
		case "random_state":
			n, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			m.randomState = int64(n)
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}

// labelValues returns the sorted distinct values of the label column.
func labelValues(y mat.Matrix) []float64 {
	rows, _ := y.Dims()
	seen := make(map[float64]bool, rows)
	var classes []float64
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	return classes
}

// toInt accepts native ints and JSON-decoded float64s that carry integral
// values.
func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// toFloat accepts native float64s and ints.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// toIntSlice accepts a single integer, a []int, or a JSON-decoded
// []interface{} of integral numbers.
func toIntSlice(value interface{}) ([]int, bool) {
	switch v := value.(type) {
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out, true
	case []interface{}:
		out := make([]int, len(v))
		for i, item := range v {
			n, ok := toInt(item)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	default:
		if n, ok := toInt(value); ok {
			return []int{n}, true
		}
	}
	return nil, false
}
