package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/neurogo/dataset"
	"github.com/YuminosukeSato/neurogo/inference"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/store"
)

type evalOutput struct {
	Accuracy          float64            `json:"accuracy"`
	Precision         float64            `json:"precision"`
	Recall            float64            `json:"recall"`
	F1Score           float64            `json:"f1Score"`
	ConfusionMatrix   [][]int            `json:"confusionMatrix"`
	FeatureImportance map[string]float64 `json:"featureImportance"`
	Error             string             `json:"error,omitempty"`
}

var (
	evalTarget  string
	evalHeatmap string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <modelPath> <data.json> <featuresJSON>",
	Short: "Score a persisted model against a labeled dataset",
	Long: `Evaluate loads a persisted model and scores it over the full
supplied dataset with no train/test split. The data file is a JSON array of
records; each record must carry every feature and the target key.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		out, err := runEvaluate(args)
		if err != nil {
			log.GetLoggerWithName("cli.evaluate").Error("evaluation run failed", log.ErrAttrKey, err)
			out = &evalOutput{
				ConfusionMatrix:   [][]int{},
				FeatureImportance: map[string]float64{},
				Error:             err.Error(),
			}
		}
		printJSON(out)
	},
}

func runEvaluate(args []string) (*evalOutput, error) {
	dir, name := splitModelPath(args[0])

	raw, err := os.ReadFile(args[1])
	if err != nil {
		return nil, errors.NewPersistenceError("read evaluation data", args[1], err)
	}
	var records []dataset.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrap(err, "decoding evaluation data")
	}
	var features []string
	if err := json.Unmarshal([]byte(args[2]), &features); err != nil {
		return nil, errors.Wrap(err, "decoding feature names")
	}

	st, err := store.New(dir)
	if err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("cli.evaluate")
	ev := inference.NewEvaluator(st, logger)
	res, err := ev.Evaluate(name, records, features, evalTarget)
	if err != nil {
		return nil, err
	}

	if evalHeatmap != "" {
		if err := inference.Heatmap(res.Metrics, evalHeatmap); err != nil {
			// The metrics are still valid; a failed render only loses
			// the picture.
			logger.Error("rendering confusion heatmap failed", log.ErrAttrKey, err)
		}
	}

	return &evalOutput{
		Accuracy:          res.Metrics.Accuracy,
		Precision:         res.Metrics.Precision,
		Recall:            res.Metrics.Recall,
		F1Score:           res.Metrics.F1,
		ConfusionMatrix:   res.Metrics.ConfusionMatrix,
		FeatureImportance: res.FeatureImportance,
	}, nil
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTarget, "target", "target", "label key present in every record")
	evaluateCmd.Flags().StringVar(&evalHeatmap, "heatmap", "", "write the confusion matrix as a PNG heatmap to this path")
}
