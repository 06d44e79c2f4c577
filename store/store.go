// Package store persists trained estimators and their fitted scalers as gob
// artifacts under a single directory, keyed by model name.
//
// Each model is written to <dir>/<name>.gob as an envelope carrying the
// algorithm name and the estimator itself. A fitted StandardScaler, when one
// accompanies the model, lives beside it in <dir>/<name>_scaler.gob so that
// inference can re-apply the exact training-time transform.
package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/neurogo/core/model"
	"github.com/YuminosukeSato/neurogo/ensemble"
	"github.com/YuminosukeSato/neurogo/linear"
	"github.com/YuminosukeSato/neurogo/neural"
	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
	"github.com/YuminosukeSato/neurogo/preprocessing"
)

func init() {
	// Every estimator that can travel inside an envelope must be registered,
	// or gob cannot decode the interface field.
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&ensemble.GradientBoostingClassifier{})
	gob.Register(&ensemble.GradientBoostingRegressor{})
	gob.Register(&linear.LogisticRegression{})
	gob.Register(&neural.MLPClassifier{})
}

const (
	artifactExt  = ".gob"
	scalerSuffix = "_scaler"

	// DefaultCacheSize bounds how many decoded artifacts stay in memory.
	DefaultCacheSize = 16
)

// envelope is the on-disk form of a persisted model.
type envelope struct {
	Algorithm string
	Model     model.Predictor
}

// artifact is a decoded model plus its optional scaler, as cached in memory.
type artifact struct {
	model  model.Predictor
	scaler *preprocessing.StandardScaler
}

// Store reads and writes model artifacts under one directory. Loads are
// served from an LRU cache keyed by model name; Save and Delete invalidate
// the cached entry. Concurrent saves of the same name are not guarded, the
// last write wins.
type Store struct {
	dir    string
	cache  *lru.Cache[string, *artifact]
	logger log.Logger
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	cacheSize int
	logger    log.Logger
}

// WithCacheSize sets how many decoded artifacts the read cache holds.
func WithCacheSize(n int) Option {
	return func(c *storeConfig) { c.cacheSize = n }
}

// WithLogger replaces the default logger.
func WithLogger(logger log.Logger) Option {
	return func(c *storeConfig) { c.logger = logger }
}

// New opens a store rooted at dir, creating the directory if it is absent.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.NewValidationError("dir", "store directory must not be empty", dir)
	}

	cfg := &storeConfig{
		cacheSize: DefaultCacheSize,
		logger:    log.GetLoggerWithName("store"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewPersistenceError("create", dir, err)
	}

	cache, err := lru.New[string, *artifact](cfg.cacheSize)
	if err != nil {
		return nil, errors.NewValidationError("cache_size", "cache size must be positive", cfg.cacheSize)
	}

	return &Store{dir: dir, cache: cache, logger: cfg.logger}, nil
}

// Dir returns the directory the store reads and writes under.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists m under name, overwriting any previous artifact. When scaler
// is non-nil it is written to the sidecar path; when nil any stale sidecar
// left by an earlier save is removed, so a load never pairs a fresh model
// with an outdated transform.
func (s *Store) Save(name string, m model.Predictor, scaler *preprocessing.StandardScaler) error {
	if name == "" {
		return errors.NewValidationError("name", "model name must not be empty", name)
	}
	if m == nil {
		return errors.NewValidationError("model", "a model is required", nil)
	}

	modelPath := s.modelPath(name)
	if err := encodeGob(modelPath, &envelope{Algorithm: algorithmName(m), Model: m}); err != nil {
		return errors.NewPersistenceError("save", modelPath, err)
	}

	scalerPath := s.scalerPath(name)
	if scaler != nil {
		if err := encodeGob(scalerPath, scaler); err != nil {
			return errors.NewPersistenceError("save", scalerPath, err)
		}
	} else if err := os.Remove(scalerPath); err != nil && !os.IsNotExist(err) {
		return errors.NewPersistenceError("save", scalerPath, err)
	}

	s.cache.Remove(name)
	s.logger.Debug("model artifact written",
		log.ArtifactKey, name,
		log.ModelDirKey, s.dir,
		log.AlgorithmKey, algorithmName(m),
	)
	return nil
}

// Load returns the model persisted under name and, when one was saved with
// it, the fitted scaler. A missing model artifact yields ModelNotFoundError;
// a missing scaler sidecar is not an error.
func (s *Store) Load(name string) (model.Predictor, *preprocessing.StandardScaler, error) {
	if art, ok := s.cache.Get(name); ok {
		return art.model, art.scaler, nil
	}

	modelPath := s.modelPath(name)
	var env envelope
	if err := decodeGob(modelPath, &env); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewModelNotFoundError(name, modelPath)
		}
		return nil, nil, errors.NewPersistenceError("load", modelPath, err)
	}

	var scaler *preprocessing.StandardScaler
	scalerPath := s.scalerPath(name)
	var sc preprocessing.StandardScaler
	if err := decodeGob(scalerPath, &sc); err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, errors.NewPersistenceError("load", scalerPath, err)
		}
	} else {
		scaler = &sc
	}

	s.cache.Add(name, &artifact{model: env.Model, scaler: scaler})
	s.logger.Debug("model artifact loaded",
		log.ArtifactKey, name,
		log.ModelDirKey, s.dir,
		log.AlgorithmKey, env.Algorithm,
	)
	return env.Model, scaler, nil
}

// Exists reports whether a model artifact is persisted under name.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.modelPath(name))
	return err == nil
}

// Delete removes the model artifact and any scaler sidecar persisted under
// name. Deleting a name that was never saved yields ModelNotFoundError.
func (s *Store) Delete(name string) error {
	modelPath := s.modelPath(name)
	if err := os.Remove(modelPath); err != nil {
		if os.IsNotExist(err) {
			return errors.NewModelNotFoundError(name, modelPath)
		}
		return errors.NewPersistenceError("delete", modelPath, err)
	}

	scalerPath := s.scalerPath(name)
	if err := os.Remove(scalerPath); err != nil && !os.IsNotExist(err) {
		return errors.NewPersistenceError("delete", scalerPath, err)
	}

	s.cache.Remove(name)
	s.logger.Debug("model artifact deleted", log.ArtifactKey, name, log.ModelDirKey, s.dir)
	return nil
}

// List returns the names of all persisted models, sorted. Scaler sidecars
// are not listed on their own.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewPersistenceError("list", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		if !strings.HasSuffix(base, artifactExt) {
			continue
		}
		name := strings.TrimSuffix(base, artifactExt)
		if strings.HasSuffix(name, scalerSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) modelPath(name string) string {
	return filepath.Join(s.dir, name+artifactExt)
}

func (s *Store) scalerPath(name string) string {
	return filepath.Join(s.dir, name+scalerSuffix+artifactExt)
}

// encodeGob writes value to path, truncating any existing file.
func encodeGob(path string, value interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return gob.NewEncoder(f).Encode(value)
}

// decodeGob reads value from path. The os.IsNotExist test on the returned
// error distinguishes a missing artifact from a corrupt one.
func decodeGob(path string, value interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return gob.NewDecoder(f).Decode(value)
}

// algorithmName records the provenance of a persisted model in its envelope.
func algorithmName(m model.Predictor) string {
	switch m.(type) {
	case *ensemble.RandomForestClassifier:
		return "random_forest"
	case *ensemble.GradientBoostingClassifier:
		return "gradient_boosting"
	case *ensemble.GradientBoostingRegressor:
		return "gradient_boosting_regressor"
	case *linear.LogisticRegression:
		return "logistic_regression"
	case *neural.MLPClassifier:
		return "neural_network"
	default:
		return fmt.Sprintf("%T", m)
	}
}
