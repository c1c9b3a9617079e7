package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts/artifactstest"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

func TestLoaderMemoizesBundle(t *testing.T) {
	dir := t.TempDir()
	if err := artifactstest.Write(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	loader := NewLoader(dir, DefaultFiles())
	first, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("expected memoized bundle on unchanged files")
	}
	if first.Fingerprint() == "" {
		t.Fatal("expected fingerprint")
	}

	schema := first.Schema()
	if len(schema.Columns) != 17 || len(schema.Numeric) != 9 || len(schema.Categorical) != 8 {
		t.Fatalf("unexpected schema %+v", schema)
	}
}

func TestLoaderReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	if err := artifactstest.Write(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	loader := NewLoader(dir, DefaultFiles())
	first, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scalerPath := filepath.Join(dir, "scaler.json")
	content, err := os.ReadFile(scalerPath)
	if err != nil {
		t.Fatalf("failed to read scaler: %v", err)
	}
	if err := os.WriteFile(scalerPath, append(content, '\n'), 0o644); err != nil {
		t.Fatalf("failed to rewrite scaler: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(scalerPath, future, future); err != nil {
		t.Fatalf("failed to touch scaler: %v", err)
	}

	second, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatal("expected reload after modification")
	}
	if first.Fingerprint() == second.Fingerprint() {
		t.Fatal("expected fingerprint to change with content")
	}
}

func touch(t *testing.T, path string, content []byte, at time.Time) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("failed to touch %s: %v", path, err)
	}
}

func TestLoaderKeepsBundleWhenReloadFails(t *testing.T) {
	dir := t.TempDir()
	if err := artifactstest.Write(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	loader := NewLoader(dir, DefaultFiles())
	first, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modelPath := filepath.Join(dir, "model.json")
	good, err := os.ReadFile(modelPath)
	if err != nil {
		t.Fatalf("failed to read model: %v", err)
	}
	touch(t, modelPath, good[:len(good)/2], time.Now().Add(time.Hour))

	for i := 0; i < 2; i++ {
		bundle, err := loader.Load()
		if err != nil {
			t.Fatalf("expected previous bundle while model is half written, got %v", err)
		}
		if bundle != first {
			t.Fatal("expected previous bundle to be served")
		}
	}

	touch(t, modelPath, good, time.Now().Add(2*time.Hour))
	reloaded, err := loader.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded == first {
		t.Fatal("expected reload once the model is complete again")
	}
	if reloaded.Fingerprint() != first.Fingerprint() {
		t.Fatal("expected identical content to keep its fingerprint")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	if _, err := NewLoader(t.TempDir(), DefaultFiles()).Load(); err == nil {
		t.Fatal("expected error for missing artifacts")
	}
}

func TestNewBundleRejectsInconsistentArtifacts(t *testing.T) {
	model := artifactstest.Model()
	encoder := artifactstest.Encoder()

	if _, err := NewBundle(model, encoder, artifactstest.Scaler(false)); err == nil {
		t.Fatal("expected width mismatch without BMI column")
	}

	overlap := &preprocess.Scaler{
		Kind:    preprocess.ScalerStandard,
		Columns: append([]string{"Gender"}, artifactstest.Scaler(true).Columns[1:]...),
		Mean:    make([]float64, 9),
		Scale:   make([]float64, 9),
	}
	if err := overlap.Validate(); err != nil {
		t.Fatalf("failed to build scaler: %v", err)
	}
	if _, err := NewBundle(model, encoder, overlap); err == nil {
		t.Fatal("expected overlapping column error")
	}

	if _, err := NewBundle(model, encoder, artifactstest.Scaler(true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
