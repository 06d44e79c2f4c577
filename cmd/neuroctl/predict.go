package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/neurogo/inference"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/store"
)

type predictOutput struct {
	Prediction        float64            `json:"prediction"`
	Confidence        float64            `json:"confidence"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	Explanation       string             `json:"explanation"`
	Error             string             `json:"error,omitempty"`
}

var predictCmd = &cobra.Command{
	Use:   "predict <modelPath> <featuresJSON> <featureNamesJSON>",
	Short: "Predict one row with a persisted model",
	Long: `Predict loads a persisted model and classifies a single feature
row. featuresJSON is a JSON object of feature values; featureNamesJSON is a
JSON array fixing the column order, which must match training.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		out, err := runPredict(args)
		if err != nil {
			log.GetLoggerWithName("cli.predict").Error("prediction run failed", log.ErrAttrKey, err)
			out = &predictOutput{
				FeatureImportance: map[string]float64{},
				Error:             err.Error(),
			}
		}
		printJSON(out)
	},
}

func runPredict(args []string) (*predictOutput, error) {
	dir, name := splitModelPath(args[0])

	var features map[string]interface{}
	if err := json.Unmarshal([]byte(args[1]), &features); err != nil {
		return nil, errors.Wrap(err, "decoding feature values")
	}
	var order []string
	if err := json.Unmarshal([]byte(args[2]), &order); err != nil {
		return nil, errors.Wrap(err, "decoding feature names")
	}

	st, err := store.New(dir)
	if err != nil {
		return nil, err
	}
	pr := inference.NewPredictor(st, log.GetLoggerWithName("cli.predict"))
	pred, err := pr.Predict(name, features, order)
	if err != nil {
		return nil, err
	}
	return &predictOutput{
		Prediction:        pred.Prediction,
		Confidence:        pred.Confidence,
		FeatureImportance: pred.FeatureImportance,
		Explanation:       pred.Explanation,
	}, nil
}
