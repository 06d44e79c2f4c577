package metrics

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:  1.0,
		},
		{
			name:  "Worst classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:  0.0,
		},
		{
			name:  "Random classifier",
			yTrue: []float64{0, 1, 0, 1},
			yPred: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.75,
		},
		{
			name:  "All positive labels",
			yTrue: []float64{1, 1, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:  "All negative labels",
			yTrue: []float64{0, 0, 0, 0},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := AUC(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUC() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAUCMatrix(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   mat.Matrix
		yPred   mat.Matrix
		want    float64
		wantErr bool
	}{
		{
			name:  "Matrix input",
			yTrue: mat.NewDense(4, 1, []float64{0, 0, 1, 1}),
			yPred: mat.NewDense(4, 1, []float64{0.1, 0.4, 0.35, 0.8}),
			want:  0.75,
		},
		{
			name:  "Multi-column matrix (uses first column)",
			yTrue: mat.NewDense(4, 2, []float64{0, 9, 0, 9, 1, 9, 1, 9}),
			yPred: mat.NewDense(4, 2, []float64{0.1, 9, 0.4, 9, 0.35, 9, 0.8, 9}),
			want:  0.75,
		},
		{
			name:    "Nil matrix",
			yTrue:   nil,
			yPred:   mat.NewDense(1, 1, []float64{0.5}),
			wantErr: true,
		},
		{
			name:    "Empty matrix",
			yTrue:   &mat.Dense{},
			yPred:   &mat.Dense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUCMatrix(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUCMatrix() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUCMatrix() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 0, 1, 1},
			want:  0.0, // Will be small epsilon value due to clipping
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.2, 0.8, 0.9},
			want:  0.164252, // Approximate expected value
		},
		{
			name:  "Worst predictions",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.9, 0.9, 0.1, 0.1},
			want:  2.3025851, // Approximate expected value
		},
		{
			name:  "Clipping edge case",
			yTrue: []float64{0, 1},
			yPred: []float64{0, 1}, // Will be clipped to avoid log(0)
			want:  0.0,             // Small value due to epsilon
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := BinaryLogLoss(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("BinaryLogLoss() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 0.01 {
				t.Errorf("BinaryLogLoss() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassificationError(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classification",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  0.0,
		},
		{
			name:  "One error",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.2,
		},
		{
			name:  "All wrong",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  1.0,
		},
		{
			name:  "Binary classification",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0, 1, 1, 0},
			want:  0.5,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := ClassificationError(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("ClassificationError() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ClassificationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfusionMatrix(t *testing.T) {
	tests := []struct {
		name       string
		yTrue      []float64
		yPred      []float64
		wantCM     [][]int
		wantLabels []float64
		wantErr    bool
	}{
		{
			name:       "Three classes",
			yTrue:      []float64{0, 0, 1, 1, 2, 2},
			yPred:      []float64{0, 1, 1, 1, 2, 0},
			wantCM:     [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}},
			wantLabels: []float64{0, 1, 2},
		},
		{
			name:       "Label only in predictions",
			yTrue:      []float64{0, 0, 1},
			yPred:      []float64{0, 2, 1},
			wantCM:     [][]int{{1, 0, 1}, {0, 1, 0}, {0, 0, 0}},
			wantLabels: []float64{0, 1, 2},
		},
		{
			name:       "Labels sorted ascending regardless of input order",
			yTrue:      []float64{2, 0, 1},
			yPred:      []float64{2, 0, 1},
			wantCM:     [][]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
			wantLabels: []float64{0, 1, 2},
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			gotCM, gotLabels, err := ConfusionMatrix(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfusionMatrix() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(gotCM, tt.wantCM) {
				t.Errorf("ConfusionMatrix() = %v, want %v", gotCM, tt.wantCM)
			}
			if !reflect.DeepEqual(gotLabels, tt.wantLabels) {
				t.Errorf("ConfusionMatrix() labels = %v, want %v", gotLabels, tt.wantLabels)
			}
		})
	}
}

func TestPrecisionRecallF1(t *testing.T) {
	tests := []struct {
		name          string
		yTrue         []float64
		yPred         []float64
		average       string
		wantPrecision float64
		wantRecall    float64
		wantF1        float64
		wantErr       bool
	}{
		{
			name:          "Perfect binary",
			yTrue:         []float64{0, 0, 1, 1},
			yPred:         []float64{0, 0, 1, 1},
			average:       "weighted",
			wantPrecision: 1.0,
			wantRecall:    1.0,
			wantF1:        1.0,
		},
		{
			name:          "Three classes weighted",
			yTrue:         []float64{0, 1, 2, 0, 1, 2},
			yPred:         []float64{0, 2, 1, 0, 0, 1},
			average:       "weighted",
			wantPrecision: 0.222222,
			wantRecall:    0.333333,
			wantF1:        0.266667,
		},
		{
			name:          "Three classes macro",
			yTrue:         []float64{0, 1, 2, 0, 1, 2},
			yPred:         []float64{0, 2, 1, 0, 0, 1},
			average:       "macro",
			wantPrecision: 0.222222,
			wantRecall:    0.333333,
			wantF1:        0.266667,
		},
		{
			name:          "Class never predicted scores zero",
			yTrue:         []float64{0, 0, 1},
			yPred:         []float64{0, 0, 0},
			average:       "weighted",
			wantPrecision: 0.444444,
			wantRecall:    0.666667,
			wantF1:        0.533333,
		},
		{
			name:    "Unknown average",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0, 1},
			average: "micro",
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			average: "weighted",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			gotP, gotR, gotF1, err := PrecisionRecallF1(yTrue, yPred, tt.average)
			if (err != nil) != tt.wantErr {
				t.Errorf("PrecisionRecallF1() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if math.Abs(gotP-tt.wantPrecision) > 1e-6 {
				t.Errorf("PrecisionRecallF1() precision = %v, want %v", gotP, tt.wantPrecision)
			}
			if math.Abs(gotR-tt.wantRecall) > 1e-6 {
				t.Errorf("PrecisionRecallF1() recall = %v, want %v", gotR, tt.wantRecall)
			}
			if math.Abs(gotF1-tt.wantF1) > 1e-6 {
				t.Errorf("PrecisionRecallF1() f1 = %v, want %v", gotF1, tt.wantF1)
			}
		})
	}
}

func TestPrecisionRecallF1WarnsOnZeroDivision(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(w error) {})

	yTrue := mat.NewVecDense(3, []float64{0, 0, 1})
	yPred := mat.NewVecDense(3, []float64{0, 0, 0})

	if _, _, _, err := PrecisionRecallF1(yTrue, yPred, "weighted"); err != nil {
		t.Fatalf("PrecisionRecallF1() error = %v", err)
	}

	found := false
	for _, w := range warnings {
		var umw *errors.UndefinedMetricWarning
		if errors.As(w, &umw) && umw.Metric == "precision" {
			found = true
		}
	}
	if !found {
		t.Error("Expected UndefinedMetricWarning for precision, got none")
	}
}

func TestReport(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 1, 1, 2, 2})
	yPred := mat.NewVecDense(6, []float64{0, 1, 1, 1, 2, 0})

	report, err := Report(yTrue, yPred)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	if math.Abs(report.Accuracy-4.0/6.0) > 1e-6 {
		t.Errorf("Report() accuracy = %v, want %v", report.Accuracy, 4.0/6.0)
	}
	wantCM := [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}}
	if !reflect.DeepEqual(report.ConfusionMatrix, wantCM) {
		t.Errorf("Report() confusion matrix = %v, want %v", report.ConfusionMatrix, wantCM)
	}
	wantLabels := []float64{0, 1, 2}
	if !reflect.DeepEqual(report.Labels, wantLabels) {
		t.Errorf("Report() labels = %v, want %v", report.Labels, wantLabels)
	}
	if report.F1 <= 0 || report.F1 > 1 {
		t.Errorf("Report() f1 = %v, want value in (0, 1]", report.F1)
	}
	if report.Precision <= 0 || report.Precision > 1 {
		t.Errorf("Report() precision = %v, want value in (0, 1]", report.Precision)
	}

	_, err = Report(nil, nil)
	if err == nil {
		t.Error("Report() with nil vectors should return error")
	}
}

// Benchmark tests
func BenchmarkAUC(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yPred[i] = float64(i) / float64(n)
		} else {
			yTrue[i] = 1
			yPred[i] = float64(i) / float64(n)
		}
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrueVec, yPredVec)
	}
}

func BenchmarkBinaryLogLoss(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yPred[i] = 0.1 + 0.3*float64(i)/float64(n)
		} else {
			yTrue[i] = 1
			yPred[i] = 0.6 + 0.3*float64(i-n/2)/float64(n/2)
		}
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BinaryLogLoss(yTrueVec, yPredVec)
	}
}
