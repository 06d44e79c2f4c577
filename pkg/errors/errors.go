// Package errors provides the error handling and warning system used across
// neurogo. It is inspired by scikit-learn's warning and exception hierarchy
// and builds on cockroachdb/errors so every error carries a stack trace.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("neurogo-warning: %v\n", w)
	}
	// zerolog sink, injected lazily by pkg/log to avoid an import cycle.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc routes warnings through a zerolog-backed sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the zerolog sink when one is installed,
// falling back to the plain handler otherwise.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// ConvergenceWarning is raised when an iterative optimizer stops before
// reaching its tolerance.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds structured warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a new ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning is raised when input values are converted implicitly,
// for example booleans encoded as 0/1 features.
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject adds structured warning fields to a zerolog event.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning creates a new DataConversionWarning.
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning is raised when a metric is ill-defined for the given
// inputs, e.g. precision for a class that was never predicted.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning creates a new UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// SchemaError reports a record that does not satisfy the requested feature
// schema: a missing key or a value that cannot be used as a feature.
type SchemaError struct {
	Record int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("neurogo: record %d: field %q: %s", e.Record, e.Field, e.Reason)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("record", e.Record).
		Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError creates a new SchemaError with a stack trace attached.
func NewSchemaError(record int, field, reason string) error {
	err := &SchemaError{Record: record, Field: field, Reason: reason}
	return errors.WithStack(err)
}

// ModelNotFoundError reports a load of a model name that has no persisted
// artifact.
type ModelNotFoundError struct {
	Name string
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("neurogo: model %q not found (no artifact at %s)", e.Name, e.Path)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ModelNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Name).
		Str("path", e.Path).
		Str("type", "ModelNotFoundError")
}

// NewModelNotFoundError creates a new ModelNotFoundError with a stack trace attached.
func NewModelNotFoundError(name, path string) error {
	err := &ModelNotFoundError{Name: name, Path: path}
	return errors.WithStack(err)
}

// TrainingError wraps a failure inside a training run with the operation and
// stage where it occurred.
type TrainingError struct {
	Op     string
	Reason string
	Err    error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("neurogo: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("neurogo: %s: %s", e.Op, e.Reason)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "TrainingError")
	if e.Err != nil {
		event.AnErr("cause", e.Err)
	}
}

// NewTrainingError creates a new TrainingError with a stack trace attached.
func NewTrainingError(op, reason string, err error) error {
	trainErr := &TrainingError{Op: op, Reason: reason, Err: err}
	return errors.WithStack(trainErr)
}

// PersistenceError wraps an I/O or codec failure while reading or writing a
// model artifact.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("neurogo: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("neurogo: %s %s", e.Op, e.Path)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "PersistenceError")
	if e.Err != nil {
		event.AnErr("cause", e.Err)
	}
}

// NewPersistenceError creates a new PersistenceError with a stack trace attached.
func NewPersistenceError(op, path string, err error) error {
	persErr := &PersistenceError{Op: op, Path: path, Err: err}
	return errors.WithStack(persErr)
}

// NotFittedError is returned when Predict or Transform is called on a model
// that has not been fitted yet.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("neurogo: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a new NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when input data has an unexpected shape.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("neurogo: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a new DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError is returned when a parameter fails validation, for example
// an unknown hyperparameter key or a value outside its allowed range.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("neurogo: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a new ValidationError with a stack trace attached.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument value is invalid for an operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("neurogo: %s: %s", e.Op, e.Message)
}

// NewValueError creates a new ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// FederationError reports a failed exchange with the federation API. Status
// is zero when the request never produced an HTTP response.
type FederationError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FederationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("neurogo: %s %s: unexpected status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("neurogo: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FederationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured error fields to a zerolog event.
func (e *FederationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("url", e.URL).
		Int("status", e.Status).
		Str("type", "FederationError")
	if e.Err != nil {
		event.AnErr("cause", e.Err)
	}
}

// NewFederationError creates a new FederationError with a stack trace attached.
func NewFederationError(op, url string, status int, err error) error {
	fedErr := &FederationError{Op: op, URL: url, Status: status, Err: err}
	return errors.WithStack(fedErr)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be cast into target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common sentinel errors
//
// ===========================================================================

var (
	// ErrNotImplemented is returned for features that are not implemented.
	ErrNotImplemented = New("not implemented")

	// ErrEmptyData is returned when an operation receives no data.
	ErrEmptyData = New("empty data")
)
