package forest

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const leaf = -1

// Tree is a fitted CART tree in flat array layout. Node i is a leaf when
// ChildrenLeft[i] == -1; otherwise samples with x[Feature[i]] <= Threshold[i]
// go left.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a fitted random forest classifier.
type Forest struct {
	Type      string   `json:"type"`
	Classes   []string `json:"classes"`
	NFeatures int      `json:"n_features"`
	Trees     []Tree   `json:"trees"`
}

func Decode(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Forest) Validate() error {
	if f.Type != "" && f.Type != "random_forest" && f.Type != "decision_tree" {
		return fmt.Errorf("unsupported model type %q", f.Type)
	}
	if len(f.Classes) < 2 {
		return errors.New("model needs at least two classes")
	}
	if f.NFeatures <= 0 {
		return errors.New("model n_features must be positive")
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures, len(f.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != nClasses {
			return fmt.Errorf("node %d has %d values for %d classes", i, len(t.Value[i]), nClasses)
		}
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == leaf {
			continue
		}
		// children always come after their parent in the exported layout
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has children out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, t.Feature[i])
		}
	}
	return nil
}

func (t *Tree) leafFor(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// proba adds the normalized leaf distribution for x into acc.
func (t *Tree) proba(x []float64, acc []float64) {
	values := t.Value[t.leafFor(x)]
	var total float64
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return
	}
	for i, v := range values {
		acc[i] += v / total
	}
}

func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NFeatures {
		return nil, fmt.Errorf("model expects %d features, got %d", f.NFeatures, len(x))
	}
	acc := make([]float64, len(f.Classes))
	for i := range f.Trees {
		f.Trees[i].proba(x, acc)
	}
	n := float64(len(f.Trees))
	for i := range acc {
		acc[i] /= n
	}
	return acc, nil
}

// Predict returns the class with the highest mean probability. Ties go to
// the class listed first.
func (f *Forest) Predict(x []float64) (string, []float64, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return "", nil, err
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.Classes[best], proba, nil
}
