// Package dataset builds numeric feature matrices from decoded JSON records.
package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
)

// Record is one decoded JSON object.
type Record = map[string]interface{}

// Frame holds a feature matrix with its column names and, when a target was
// requested, the label vector. Row i corresponds to the i-th input record.
type Frame struct {
	X            *mat.Dense
	FeatureNames []string
	Y            *mat.VecDense
	NRows        int
}

// Build assembles a Frame from records. Columns follow the order of features
// exactly. Every record must carry every feature key, and the target key when
// target is non-empty; a missing key or a non-numeric value is a SchemaError
// naming the record index and field. Bools convert to 0/1 with a
// DataConversionWarning.
func Build(records []Record, features []string, target string) (*Frame, error) {
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Build")
	}
	if len(features) == 0 {
		return nil, errors.NewValidationError("features", "must not be empty", features)
	}

	rows := len(records)
	warned := make(map[string]bool)

	X := mat.NewDense(rows, len(features), nil)
	var y *mat.VecDense
	if target != "" {
		y = mat.NewVecDense(rows, nil)
	}

	for i, rec := range records {
		for j, name := range features {
			raw, ok := rec[name]
			if !ok {
				return nil, errors.NewSchemaError(i, name, "missing feature key")
			}
			v, err := numericValue(i, name, raw, warned)
			if err != nil {
				return nil, err
			}
			X.Set(i, j, v)
		}
		if target != "" {
			raw, ok := rec[target]
			if !ok {
				return nil, errors.NewSchemaError(i, target, "missing target key")
			}
			v, err := numericValue(i, target, raw, warned)
			if err != nil {
				return nil, err
			}
			y.SetVec(i, v)
		}
	}

	names := make([]string, len(features))
	copy(names, features)
	return &Frame{X: X, FeatureNames: names, Y: y, NRows: rows}, nil
}

// BuildRow assembles a single prediction row with columns in the given order,
// under the same key and type rules as Build.
func BuildRow(features Record, order []string) (*mat.Dense, error) {
	if len(order) == 0 {
		return nil, errors.NewValidationError("features", "must not be empty", order)
	}

	warned := make(map[string]bool)
	row := mat.NewDense(1, len(order), nil)
	for j, name := range order {
		raw, ok := features[name]
		if !ok {
			return nil, errors.NewSchemaError(0, name, "missing feature key")
		}
		v, err := numericValue(0, name, raw, warned)
		if err != nil {
			return nil, err
		}
		row.Set(0, j, v)
	}
	return row, nil
}

// Classes returns the sorted distinct labels of the target vector, or nil
// when the Frame was built without a target.
func (f *Frame) Classes() []float64 {
	if f.Y == nil {
		return nil
	}
	seen := make(map[float64]bool, f.Y.Len())
	var classes []float64
	for i := 0; i < f.Y.Len(); i++ {
		v := f.Y.AtVec(i)
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	return classes
}

// numericValue coerces a decoded JSON value to float64. Bools become 0/1 and
// warn once per field.
func numericValue(record int, field string, raw interface{}, warned map[string]bool) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if !warned[field] {
			warned[field] = true
			errors.Warn(errors.NewDataConversionWarning("bool", "float64",
				fmt.Sprintf("field %q converted to 0/1", field)))
		}
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.NewSchemaError(record, field, fmt.Sprintf("value of type %T is not numeric", raw))
	}
}
