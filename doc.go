// Package neurogo is a machine-learning toolkit for a federation of
// "neuron" services: it trains classifier models over JSON records,
// evaluates and serves them from a filesystem model store, aggregates
// cross-neuron performance insights, and ships a neuron client that
// reports back to the federation core.
//
// # Packages
//
//   - dataset: JSON records to gonum feature matrices
//   - preprocessing: feature standardization
//   - ensemble, linear, neural: the estimator families
//   - training: train/test splitting, cross-validation and the trainer
//   - store: gob-persisted model artifacts keyed by name
//   - inference: full-dataset evaluation and single-row prediction
//   - insights: heuristic pattern discovery plus auxiliary models
//   - federation: the long-running neuron daemon and its REST client
//
// # Quick start
//
// Train a random forest and persist it:
//
//	st, err := store.New("models")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trainer := training.NewTrainer(st, nil)
//	result, err := trainer.Train(training.Request{
//	    Records:   records,
//	    Features:  []string{"clicks", "conversions", "revenue"},
//	    Target:    "label",
//	    Algorithm: "random_forest",
//	    ModelName: "performance-classifier",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("accuracy: %.3f\n", result.Metrics.Accuracy)
//
// Predict a single row later, in another process:
//
//	pr := inference.NewPredictor(st, nil)
//	pred, err := pr.Predict("performance-classifier",
//	    map[string]any{"clicks": 120, "conversions": 8, "revenue": 310.0},
//	    []string{"clicks", "conversions", "revenue"})
//
// The neuroctl command wraps these operations for shell pipelines; every
// data command prints a single JSON document to stdout and exits 0, with
// failures reported through an "error" field in the payload.
package neurogo
