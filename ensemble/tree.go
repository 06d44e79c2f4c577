// Package ensemble provides tree-based estimators: a CART decision tree,
// a bagged random forest and gradient boosting for classification and
// regression.
package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// TreeNode is one node of a fitted CART tree. Fields are exported so fitted
// trees survive gob encoding.
type TreeNode struct {
	// Feature is the split feature index, -1 at leaves.
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode

	// Value holds the class distribution at classification leaves or a
	// single fitted value at regression leaves.
	Value []float64

	// Samples is the number of training samples that reached this node.
	Samples  int
	Impurity float64
}

func (n *TreeNode) isLeaf() bool { return n.Feature < 0 }

// apply walks one sample down to its leaf.
func (n *TreeNode) apply(x []float64) *TreeNode {
	node := n
	for !node.isLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (n *TreeNode) depth() int {
	if n == nil || n.isLeaf() {
		return 0
	}
	left := n.Left.depth()
	right := n.Right.depth()
	if left > right {
		return left + 1
	}
	return right + 1
}

func (n *TreeNode) leaves() int {
	if n == nil {
		return 0
	}
	if n.isLeaf() {
		return 1
	}
	return n.Left.leaves() + n.Right.leaves()
}

// treeBuilder grows a CART tree by recursive binary splitting. With
// nClasses > 0 it grows classification trees on encoded class indices,
// otherwise regression trees on continuous targets.
type treeBuilder struct {
	criterion       string // "gini", "entropy" or "mse"
	maxDepth        int    // -1 for unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 uses every feature
	nClasses        int // 0 grows regression trees
	nFeatures       int
	nTotal          int
	rng             *rand.Rand

	// importances accumulates weighted impurity decrease per feature.
	importances []float64
}

func newTreeBuilder(criterion string, maxDepth, minSamplesSplit, minSamplesLeaf, maxFeatures, nClasses, nFeatures int, rng *rand.Rand) *treeBuilder {
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf < 1 {
		minSamplesLeaf = 1
	}
	return &treeBuilder{
		criterion:       criterion,
		maxDepth:        maxDepth,
		minSamplesSplit: minSamplesSplit,
		minSamplesLeaf:  minSamplesLeaf,
		maxFeatures:     maxFeatures,
		nClasses:        nClasses,
		nFeatures:       nFeatures,
		rng:             rng,
		importances:     make([]float64, nFeatures),
	}
}

func (b *treeBuilder) impurity(y []float64, indices []int) float64 {
	if b.nClasses > 0 {
		counts := make([]float64, b.nClasses)
		for _, i := range indices {
			counts[int(y[i])]++
		}
		n := float64(len(indices))
		switch b.criterion {
		case "entropy":
			var h float64
			for _, c := range counts {
				if c > 0 {
					p := c / n
					h -= p * math.Log2(p)
				}
			}
			return h
		default: // gini
			g := 1.0
			for _, c := range counts {
				p := c / n
				g -= p * p
			}
			return g
		}
	}

	// Regression: variance.
	var sum, sumSq float64
	for _, i := range indices {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	n := float64(len(indices))
	mean := sum / n
	return sumSq/n - mean*mean
}

func (b *treeBuilder) leafValue(y []float64, indices []int) []float64 {
	if b.nClasses > 0 {
		dist := make([]float64, b.nClasses)
		for _, i := range indices {
			dist[int(y[i])]++
		}
		for k := range dist {
			dist[k] /= float64(len(indices))
		}
		return dist
	}

	var sum float64
	for _, i := range indices {
		sum += y[i]
	}
	return []float64{sum / float64(len(indices))}
}

// candidateFeatures returns the feature indices considered at one split.
func (b *treeBuilder) candidateFeatures() []int {
	if b.maxFeatures <= 0 || b.maxFeatures >= b.nFeatures {
		feats := make([]int, b.nFeatures)
		for i := range feats {
			feats[i] = i
		}
		return feats
	}
	return b.rng.Perm(b.nFeatures)[:b.maxFeatures]
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) bestSplit(X mat.Matrix, y []float64, indices []int, parentImpurity float64) *split {
	n := len(indices)
	best := &split{feature: -1, gain: 1e-12}

	for _, feat := range b.candidateFeatures() {
		sorted := make([]int, n)
		copy(sorted, indices)
		sort.Slice(sorted, func(a, c int) bool {
			return X.At(sorted[a], feat) < X.At(sorted[c], feat)
		})

		// Scan split positions between distinct neighboring values.
		for pos := b.minSamplesLeaf; pos <= n-b.minSamplesLeaf; pos++ {
			prev := X.At(sorted[pos-1], feat)
			cur := X.At(sorted[pos], feat)
			if prev == cur {
				continue
			}

			left := sorted[:pos]
			right := sorted[pos:]
			impL := b.impurity(y, left)
			impR := b.impurity(y, right)
			gain := parentImpurity -
				(float64(len(left))/float64(n))*impL -
				(float64(len(right))/float64(n))*impR

			if gain > best.gain {
				best.feature = feat
				best.threshold = (prev + cur) / 2
				best.gain = gain
				best.left = left
				best.right = right
			}
		}
	}

	if best.feature < 0 {
		return nil
	}
	return best
}

func (b *treeBuilder) build(X mat.Matrix, y []float64, indices []int, depth int) *TreeNode {
	imp := b.impurity(y, indices)
	node := &TreeNode{
		Feature:  -1,
		Samples:  len(indices),
		Impurity: imp,
	}

	if len(indices) < b.minSamplesSplit || imp < 1e-12 ||
		(b.maxDepth >= 0 && depth >= b.maxDepth) {
		node.Value = b.leafValue(y, indices)
		return node
	}

	sp := b.bestSplit(X, y, indices, imp)
	if sp == nil {
		node.Value = b.leafValue(y, indices)
		return node
	}

	b.importances[sp.feature] += float64(len(indices)) / float64(b.nTotal) * sp.gain

	node.Feature = sp.feature
	node.Threshold = sp.threshold
	node.Left = b.build(X, y, sp.left, depth+1)
	node.Right = b.build(X, y, sp.right, depth+1)
	return node
}

// fit grows a tree over the given sample indices and returns its root.
func (b *treeBuilder) fit(X mat.Matrix, y []float64, indices []int) *TreeNode {
	b.nTotal = len(indices)
	return b.build(X, y, indices, 0)
}

// normalizedImportances returns per-feature impurity decrease scaled to sum
// to one, or all zeros when the tree never split.
func (b *treeBuilder) normalizedImportances() []float64 {
	out := make([]float64, len(b.importances))
	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total == 0 {
		return out
	}
	for i, v := range b.importances {
		out[i] = v / total
	}
	return out
}

// rowTo copies row i of X into buf.
func rowTo(X mat.Matrix, i int, buf []float64) {
	for j := range buf {
		buf[j] = X.At(i, j)
	}
}

// sortedClasses returns the distinct labels of y in ascending order and y
// encoded as indices into that label slice.
func sortedClasses(y mat.Matrix) ([]float64, []float64) {
	rows, _ := y.Dims()
	seen := make(map[float64]struct{})
	for i := 0; i < rows; i++ {
		seen[y.At(i, 0)] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for k, label := range classes {
		index[label] = k
	}
	encoded := make([]float64, rows)
	for i := 0; i < rows; i++ {
		encoded[i] = float64(index[y.At(i, 0)])
	}
	return classes, encoded
}

// DecisionTreeClassifier is a single CART classification tree.
type DecisionTreeClassifier struct {
	model.StateManager

	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	randomState     int

	nClasses_ int

	// Fitted state, exported for gob.
	Root        *TreeNode
	ClassValues []float64
	NFeatures   int
	Importances []float64
}

// TreeOption configures a DecisionTreeClassifier.
type TreeOption func(*DecisionTreeClassifier)

// WithCriterion sets the split criterion, "gini" or "entropy".
func WithCriterion(criterion string) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the tree depth. Negative means unlimited.
func WithMaxDepth(depth int) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required at a leaf.
func WithMinSamplesLeaf(n int) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeaturesCount limits how many features are examined per split.
// Zero examines all of them.
func WithMaxFeaturesCount(n int) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithTreeRandomState seeds the feature subsampling.
func WithTreeRandomState(seed int) TreeOption {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with gini criterion and no depth
// limit by default.
func NewDecisionTreeClassifier(opts ...TreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit grows the tree on X and the labels in the single column of y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.Fit")
	}
	if rows != yRows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", 1, yCols, 1)
	}

	classes, encoded := sortedClasses(y)
	dt.ClassValues = classes
	dt.nClasses_ = len(classes)
	dt.NFeatures = cols

	rng := rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)))
	builder := newTreeBuilder(dt.criterion, dt.maxDepth, dt.minSamplesSplit,
		dt.minSamplesLeaf, dt.maxFeatures, dt.nClasses_, cols, rng)

	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	dt.Root = builder.fit(X, encoded, indices)
	dt.Importances = builder.normalizedImportances()

	dt.SetDimensions(cols, rows)
	dt.SetFitted()
	return nil
}

// Predict returns the majority class at each sample's leaf.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
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
		out.Set(i, 0, dt.ClassValues[bestK])
	}
	return out, nil
}

// PredictProba returns the class distribution of each sample's leaf, one
// column per class in ascending label order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != dt.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.NFeatures, cols, 1)
	}

	nClasses := len(dt.ClassValues)
	out := mat.NewDense(rows, nClasses, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		rowTo(X, i, x)
		leaf := dt.Root.apply(x)
		for k := 0; k < nClasses; k++ {
			out.Set(i, k, leaf.Value[k])
		}
	}
	return out, nil
}

// Score returns the training accuracy of the tree on X against y, or 0 when
// prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	preds, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if preds.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// GetFeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(dt.Importances))
	copy(out, dt.Importances)
	return out
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.Root.depth()
}

// GetNLeaves returns the number of leaves in the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.Root.leaves()
}

// GetParams returns the tree hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters from a map. Integer values may arrive as
// float64 when decoded from JSON.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			dt.maxDepth = v
		case "min_samples_split":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			dt.minSamplesSplit = v
		case "min_samples_leaf":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			dt.minSamplesLeaf = v
		case "max_features":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			dt.maxFeatures = v
		case "random_state":
			v, ok := toInt(value)
			if !ok {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			dt.randomState = v
		default:
			return errors.NewValidationError(key, "unknown hyperparameter", value)
		}
	}
	return nil
}

// toInt accepts native ints and the float64 values encoding/json produces.
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
