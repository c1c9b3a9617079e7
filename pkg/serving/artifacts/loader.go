package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/ml/forest"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
)

// Files names the three exported artifacts inside the artifact directory.
type Files struct {
	Model   string
	Encoder string
	Scaler  string
}

func DefaultFiles() Files {
	return Files{Model: "model.json", Encoder: "encoder.json", Scaler: "scaler.json"}
}

// Bundle is a consistent, read-only set of fitted artifacts.
type Bundle struct {
	Model    *forest.Forest
	Encoder  *preprocess.OneHotEncoder
	Scaler   *preprocess.Scaler
	LoadedAt time.Time

	schema      observation.Schema
	fingerprint string
}

func (b *Bundle) Schema() observation.Schema {
	return b.schema
}

// Fingerprint identifies the artifact set; it changes whenever any of the
// three files changes content.
func (b *Bundle) Fingerprint() string {
	return b.fingerprint
}

// NewBundle checks that the three artifacts agree with each other.
func NewBundle(model *forest.Forest, encoder *preprocess.OneHotEncoder, scaler *preprocess.Scaler) (*Bundle, error) {
	seen := make(map[string]struct{})
	for _, col := range scaler.FeatureNames() {
		seen[col] = struct{}{}
	}
	for _, col := range encoder.FeatureNames() {
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("column %s is both scaled and encoded", col)
		}
	}
	width := len(scaler.FeatureNames()) + encoder.OutputWidth()
	if model.NFeatures != width {
		return nil, fmt.Errorf("model expects %d features but scaler and encoder produce %d", model.NFeatures, width)
	}
	return &Bundle{
		Model:    model,
		Encoder:  encoder,
		Scaler:   scaler,
		LoadedAt: time.Now().UTC(),
		schema:   observation.NewSchema(scaler.FeatureNames(), encoder.FeatureNames()),
	}, nil
}

// Loader reads the artifacts once and serves the memoized bundle until a
// file modification time changes. A failed reload keeps the previous bundle
// and is retried on the next modification.
type Loader struct {
	dir   string
	files Files

	mu             sync.RWMutex
	bundle         *Bundle
	modTimes       [3]int64
	failedModTimes [3]int64
}

func NewLoader(dir string, files Files) *Loader {
	return &Loader{dir: dir, files: files}
}

func (l *Loader) paths() [3]string {
	return [3]string{
		filepath.Join(l.dir, l.files.Model),
		filepath.Join(l.dir, l.files.Encoder),
		filepath.Join(l.dir, l.files.Scaler),
	}
}

func (l *Loader) Load() (*Bundle, error) {
	paths := l.paths()
	var mods [3]int64
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", path, err)
		}
		mods[i] = info.ModTime().UnixNano()
	}

	l.mu.RLock()
	cached, cachedMods, failedMods := l.bundle, l.modTimes, l.failedModTimes
	l.mu.RUnlock()
	if cached != nil && (cachedMods == mods || failedMods == mods) {
		return cached, nil
	}

	bundle, err := readBundle(paths)
	if err != nil {
		if cached == nil {
			return nil, err
		}
		// keep the last good bundle until the files change again
		l.mu.Lock()
		l.failedModTimes = mods
		l.mu.Unlock()
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"dir":         l.dir,
			"fingerprint": cached.fingerprint,
		}).Warn("Artifact reload failed, serving previous bundle")
		return cached, nil
	}

	l.mu.Lock()
	l.bundle = bundle
	l.modTimes = mods
	l.failedModTimes = [3]int64{}
	l.mu.Unlock()

	logger.Log.WithFields(map[string]interface{}{
		"dir":         l.dir,
		"fingerprint": bundle.fingerprint,
		"classes":     len(bundle.Model.Classes),
		"trees":       len(bundle.Model.Trees),
	}).Info("Artifacts loaded")
	return bundle, nil
}

func readBundle(paths [3]string) (*Bundle, error) {
	hash := sha256.New()
	var contents [3][]byte
	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}
		contents[i] = content
		hash.Write(content)
	}

	model, err := forest.Decode(contents[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths[0], err)
	}
	encoder, err := preprocess.DecodeEncoder(contents[1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths[1], err)
	}
	scaler, err := preprocess.DecodeScaler(contents[2])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths[2], err)
	}

	bundle, err := NewBundle(model, encoder, scaler)
	if err != nil {
		return nil, err
	}
	bundle.fingerprint = hex.EncodeToString(hash.Sum(nil))[:16]
	return bundle, nil
}
