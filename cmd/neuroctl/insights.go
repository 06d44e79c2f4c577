package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/neurogo/insights"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/store"
)

var (
	insightsData     string
	insightsModelDir string
	insightsSeed     int64
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Aggregate cross-neuron performance insights",
	Long: `Insights runs the heuristic pattern discovery pass over a batch of
neuron performance records and trains the auxiliary archetype and content
models, persisting them into the model directory. On any failure it prints
the fixed fallback payload with an "error" field and still exits 0.`,
	Run: func(cmd *cobra.Command, args []string) {
		results, err := runInsights()
		if err != nil {
			log.GetLoggerWithName("cli.insights").Error("insight aggregation failed", log.ErrAttrKey, err)
			results = insights.FallbackResults(err)
		}
		printJSON(results)
	},
}

func runInsights() (*insights.Results, error) {
	var raw []byte
	var err error
	if insightsData == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading training data from stdin")
		}
	} else {
		raw, err = os.ReadFile(insightsData)
		if err != nil {
			return nil, errors.NewPersistenceError("read training data", insightsData, err)
		}
	}
	var data insights.TrainingData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "decoding training data")
	}

	st, err := store.New(insightsModelDir)
	if err != nil {
		return nil, err
	}
	agg := insights.NewAggregator(st, log.GetLoggerWithName("cli.insights"),
		insights.WithJitterSeed(insightsSeed))
	return agg.Run(data)
}

func init() {
	insightsCmd.Flags().StringVar(&insightsData, "data", "-", "training data file, or - for stdin")
	insightsCmd.Flags().StringVar(&insightsModelDir, "model-dir", "ai-ml-data/models", "directory the trained models are persisted into")
	insightsCmd.Flags().Int64Var(&insightsSeed, "seed", 42, "seed for the readability jitter")
}
