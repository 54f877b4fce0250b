package recognition

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestSimilarityIndexCosine(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()

	idx := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)
	if err := idx.Add(alice, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(bob, []float32{0, 1, 0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tests := []struct {
		name   string
		query  []float32
		wantID uuid.UUID
		wantOK bool
	}{
		{"exact match", []float32{1, 0, 0, 0}, alice, true},
		{"orthogonal rejected", []float32{0, 0, 1, 0}, uuid.Nil, false},
		{"exactly at threshold accepted", []float32{0.6, 0, 0.8, 0}, alice, true},
		{"just below threshold rejected", []float32{0.59, 0, 0.807, 0}, uuid.Nil, false},
		{"closest of two wins", []float32{0.3, 0.95, 0, 0}, bob, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, ok, err := idx.Match(tc.query)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("Match ok = %v; want %v", ok, tc.wantOK)
			}
			if ok && m.StudentID != tc.wantID {
				t.Errorf("Match student = %s; want %s", m.StudentID, tc.wantID)
			}
		})
	}
}

func TestSimilarityIndexEuclidean(t *testing.T) {
	alice := uuid.New()

	idx := NewSimilarityIndex(MetricEuclidean, 0.5, 2, 0)
	if err := idx.Add(alice, []float32{1, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Distance below threshold matches.
	if _, ok, _ := idx.Match([]float32{1, 0.4}); !ok {
		t.Error("distance 0.4 should match with threshold 0.5")
	}
	// Distance exactly at threshold does not (strict less-than).
	if _, ok, _ := idx.Match([]float32{1, 0.5}); ok {
		t.Error("distance 0.5 should not match with threshold 0.5")
	}
}

func TestSimilarityIndexDeterministic(t *testing.T) {
	idx := NewSimilarityIndex(MetricCosine, 0.6, 2, 0)
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		// All three entries score identically for the query below; the
		// first enrolled must win every time.
		if err := idx.Add(ids[i], []float32{1, 0}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	for i := 0; i < 10; i++ {
		m, ok, err := idx.Match([]float32{1, 0})
		if err != nil || !ok {
			t.Fatalf("Match: ok=%v err=%v", ok, err)
		}
		if m.StudentID != ids[0] {
			t.Fatalf("run %d: got %s; want first enrolled %s", i, m.StudentID, ids[0])
		}
	}
}

func TestSimilarityIndexDimensionMismatch(t *testing.T) {
	idx := NewSimilarityIndex(MetricCosine, 0.6, 4, 0)

	if err := idx.Add(uuid.New(), []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add wrong dim: got %v; want ErrDimensionMismatch", err)
	}
	if _, _, err := idx.Match([]float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Match wrong dim: got %v; want ErrDimensionMismatch", err)
	}
}

func TestSimilarityIndexRemove(t *testing.T) {
	alice := uuid.New()
	idx := NewSimilarityIndex(MetricCosine, 0.6, 2, 0)
	_ = idx.Add(alice, []float32{1, 0})
	_ = idx.Add(alice, []float32{0, 1})

	idx.Remove(alice)

	if idx.Len() != 0 {
		t.Fatalf("Len = %d after Remove; want 0", idx.Len())
	}
	if _, ok, _ := idx.Match([]float32{1, 0}); ok {
		t.Error("removed student still matches")
	}
}

func TestSimilarityIndexReloadSkipsMalformed(t *testing.T) {
	idx := NewSimilarityIndex(MetricCosine, 0.6, 2, 0)
	idx.Reload([]Descriptor{
		{StudentID: uuid.New(), Vector: []float32{1, 0}},
		{StudentID: uuid.New(), Vector: []float32{1, 0, 0}}, // wrong dim
	})

	if idx.Len() != 1 {
		t.Fatalf("Len = %d; want 1 (malformed entry skipped)", idx.Len())
	}
}

func TestSimilarityIndexANN(t *testing.T) {
	// annThreshold 2 forces the HNSW path with a tiny gallery.
	idx := NewSimilarityIndex(MetricCosine, 0.6, 3, 2)
	alice := uuid.New()
	_ = idx.Add(alice, []float32{1, 0, 0})
	_ = idx.Add(uuid.New(), []float32{0, 1, 0})
	_ = idx.Add(uuid.New(), []float32{0, 0, 1})

	m, ok, err := idx.Match([]float32{0.95, 0.05, 0})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !ok || m.StudentID != alice {
		t.Fatalf("ANN match = %v/%s; want alice", ok, m.StudentID)
	}

	// Threshold still applies on the ANN path.
	if _, ok, _ := idx.Match([]float32{0.577, 0.577, 0.577}); ok {
		t.Error("below-threshold query matched via ANN")
	}
}

func TestSimilarityIndexANNMultipleDescriptorsPerStudent(t *testing.T) {
	idx := NewSimilarityIndex(MetricCosine, 0.6, 3, 2)
	alice := uuid.New()
	// Two enrollment photos of the same student must both be reachable
	// through the graph.
	_ = idx.Add(alice, []float32{1, 0, 0})
	_ = idx.Add(alice, []float32{0, 1, 0})
	_ = idx.Add(uuid.New(), []float32{0, 0, 1})

	for _, query := range [][]float32{
		{0.95, 0.05, 0},
		{0.05, 0.95, 0},
	} {
		m, ok, err := idx.Match(query)
		if err != nil {
			t.Fatalf("Match(%v): %v", query, err)
		}
		if !ok || m.StudentID != alice {
			t.Errorf("Match(%v) = %v/%s; want alice via either descriptor", query, ok, m.StudentID)
		}
	}
}
