package training

import (
	"fmt"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/ensemble"
	"github.com/YuminosukeSato/neurogo/linear"
	"github.com/YuminosukeSato/neurogo/neural"
)

// Algorithm names a trainable estimator family.
type Algorithm string

const (
	AlgorithmRandomForest       Algorithm = "random_forest"
	AlgorithmGradientBoosting   Algorithm = "gradient_boosting"
	AlgorithmLogisticRegression Algorithm = "logistic_regression"
	AlgorithmNeuralNetwork      Algorithm = "neural_network"

	// DefaultAlgorithm is what unknown algorithm names resolve to.
	DefaultAlgorithm = AlgorithmRandomForest
)

// Factory builds a fresh, unfitted estimator with default hyperparameters.
type Factory func() model.Classifier

var registry = map[Algorithm]Factory{
	AlgorithmRandomForest:       func() model.Classifier { return ensemble.NewRandomForestClassifier() },
	AlgorithmGradientBoosting:   func() model.Classifier { return ensemble.NewGradientBoostingClassifier() },
	AlgorithmLogisticRegression: func() model.Classifier { return linear.NewLogisticRegression() },
	AlgorithmNeuralNetwork:      func() model.Classifier { return neural.NewMLPClassifier() },
}

// Algorithms returns every registered algorithm name.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmRandomForest,
		AlgorithmGradientBoosting,
		AlgorithmLogisticRegression,
		AlgorithmNeuralNetwork,
	}
}

func init() {
	// Every enum member must have a factory.
	for _, alg := range Algorithms() {
		if registry[alg] == nil {
			panic(fmt.Sprintf("training: algorithm %q has no registered factory", alg))
		}
	}
}

// Resolve maps an algorithm name to its factory. An empty name means the
// caller did not choose and resolves to DefaultAlgorithm. Unknown names also
// resolve to DefaultAlgorithm but report fellBack=true so the caller can log
// the substitution.
func Resolve(name string) (alg Algorithm, factory Factory, fellBack bool) {
	if name == "" {
		return DefaultAlgorithm, registry[DefaultAlgorithm], false
	}
	alg = Algorithm(name)
	if f, ok := registry[alg]; ok {
		return alg, f, false
	}
	return DefaultAlgorithm, registry[DefaultAlgorithm], true
}
