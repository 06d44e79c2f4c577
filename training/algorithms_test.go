package training

import (
	"testing"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/ensemble"
	"github.com/YuminosukeSato/neurogo/linear"
	"github.com/YuminosukeSato/neurogo/neural"
)

func TestResolveKnownAlgorithms(t *testing.T) {
	tests := []struct {
		name string
		want Algorithm
	}{
		{name: "random_forest", want: AlgorithmRandomForest},
		{name: "gradient_boosting", want: AlgorithmGradientBoosting},
		{name: "logistic_regression", want: AlgorithmLogisticRegression},
		{name: "neural_network", want: AlgorithmNeuralNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alg, factory, fellBack := Resolve(tt.name)
			if fellBack {
				t.Errorf("Resolve(%q) reported a fallback", tt.name)
			}
			if alg != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.name, alg, tt.want)
			}
			if factory() == nil {
				t.Errorf("factory for %q returned nil", tt.name)
			}
		})
	}
}

func TestResolveFactoryTypes(t *testing.T) {
	tests := []struct {
		name  string
		match func(model.Classifier) bool
	}{
		{"random_forest", func(c model.Classifier) bool {
			_, ok := c.(*ensemble.RandomForestClassifier)
			return ok
		}},
		{"gradient_boosting", func(c model.Classifier) bool {
			_, ok := c.(*ensemble.GradientBoostingClassifier)
			return ok
		}},
		{"logistic_regression", func(c model.Classifier) bool {
			_, ok := c.(*linear.LogisticRegression)
			return ok
		}},
		{"neural_network", func(c model.Classifier) bool {
			_, ok := c.(*neural.MLPClassifier)
			return ok
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, factory, _ := Resolve(tt.name)
			if !tt.match(factory()) {
				t.Errorf("%s factory builds the wrong estimator", tt.name)
			}
		})
	}
}

func TestResolveFallback(t *testing.T) {
	alg, factory, fellBack := Resolve("decision_tree")
	if !fellBack {
		t.Error("expected an unknown name to report a fallback")
	}
	if alg != DefaultAlgorithm {
		t.Errorf("fallback resolved to %q, want %q", alg, DefaultAlgorithm)
	}
	if factory == nil {
		t.Error("fallback factory is nil")
	}
}

func TestResolveEmptyName(t *testing.T) {
	alg, _, fellBack := Resolve("")
	if fellBack {
		t.Error("an unspecified algorithm is not a fallback")
	}
	if alg != DefaultAlgorithm {
		t.Errorf("empty name resolved to %q, want %q", alg, DefaultAlgorithm)
	}
}

func TestFactoriesReturnFreshEstimators(t *testing.T) {
	for _, alg := range Algorithms() {
		_, factory, _ := Resolve(string(alg))
		if factory() == factory() {
			t.Errorf("%s factory reuses one estimator across calls", alg)
		}
	}
}
