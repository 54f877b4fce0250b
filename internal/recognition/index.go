package recognition

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// Metric selects the similarity measure for a gallery. The two metrics are
// not interchangeable: an index is bound to one metric per embedding model
// and never mixes them.
type Metric string

const (
	// MetricCosine accepts a candidate when similarity >= threshold.
	// Intended for L2-normalized embeddings (ArcFace).
	MetricCosine Metric = "cosine"
	// MetricEuclidean accepts a candidate when distance < threshold.
	MetricEuclidean Metric = "euclidean"
)

// Descriptor is one enrolled gallery entry.
type Descriptor struct {
	StudentID uuid.UUID
	Vector    []float32
}

// Match is the best gallery candidate for a query.
type Match struct {
	StudentID uuid.UUID
	Score     float32 // similarity for cosine, distance for euclidean
}

// SimilarityIndex is the in-memory gallery of enrolled descriptors.
// Read-heavy, written rarely (enrollment/removal); an RWMutex guards the
// gallery so matching never races with a concurrent enrollment.
//
// Matching is an exhaustive linear scan, O(n*d), which is fine at school
// scale. Above annThreshold entries an HNSW graph is maintained and used
// instead; the contract is unchanged.
type SimilarityIndex struct {
	mu           sync.RWMutex
	metric       Metric
	threshold    float32
	dim          int
	entries      []Descriptor
	graph        *hnsw.Graph[int]
	annThreshold int
}

// NewSimilarityIndex creates an empty gallery bound to one metric.
// dim is the descriptor length every entry and query must have.
// annThreshold <= 0 disables the HNSW path entirely.
func NewSimilarityIndex(metric Metric, threshold float64, dim, annThreshold int) *SimilarityIndex {
	return &SimilarityIndex{
		metric:       metric,
		threshold:    float32(threshold),
		dim:          dim,
		annThreshold: annThreshold,
	}
}

// Add enrolls a descriptor. Fails with ErrDimensionMismatch if the vector
// length differs from the gallery dimensionality.
func (idx *SimilarityIndex) Add(studentID uuid.UUID, vector []float32) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = append(idx.entries, Descriptor{StudentID: studentID, Vector: vector})
	idx.maybeRebuildGraph()
	return nil
}

// Remove drops all descriptors for a student.
func (idx *SimilarityIndex) Remove(studentID uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.entries[:0]
	for _, e := range idx.entries {
		if e.StudentID != studentID {
			kept = append(kept, e)
		}
	}
	idx.entries = kept
	idx.graph = nil
	idx.maybeRebuildGraph()
}

// Reload replaces the whole gallery, e.g. after an enrollment refresh from
// the store. Entries with a wrong dimension are logged and skipped, never
// aborting the reload.
func (idx *SimilarityIndex) Reload(descriptors []Descriptor) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = idx.entries[:0]
	for _, d := range descriptors {
		if len(d.Vector) != idx.dim {
			slog.Warn("skipping malformed descriptor",
				"student_id", d.StudentID, "dim", len(d.Vector), "want", idx.dim)
			continue
		}
		idx.entries = append(idx.entries, d)
	}
	idx.graph = nil
	idx.maybeRebuildGraph()
}

// Len returns the number of enrolled descriptors.
func (idx *SimilarityIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Match finds the single best-scoring candidate for the query vector.
// Returns ok=false when no candidate crosses the threshold (unrecognized).
// A query of the wrong length fails with ErrDimensionMismatch.
//
// For a fixed gallery and query the result is deterministic: the scan
// visits entries in enrollment order and a later entry replaces the best
// only on a strictly better score.
func (idx *SimilarityIndex) Match(query []float32) (Match, bool, error) {
	if len(query) != idx.dim {
		return Match{}, false, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), idx.dim)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph != nil {
		return idx.matchANN(query)
	}
	return idx.matchLinear(query)
}

func (idx *SimilarityIndex) matchLinear(query []float32) (Match, bool, error) {
	var best Match
	found := false

	for _, e := range idx.entries {
		if len(e.Vector) != idx.dim {
			// Corrupt enrollment data; skip the single comparison.
			continue
		}

		switch idx.metric {
		case MetricEuclidean:
			d := euclideanDistance(query, e.Vector)
			if d >= idx.threshold {
				continue
			}
			if !found || d < best.Score {
				best = Match{StudentID: e.StudentID, Score: d}
				found = true
			}
		default:
			s := cosineSimilarity(query, e.Vector)
			if s < idx.threshold {
				continue
			}
			if !found || s > best.Score {
				best = Match{StudentID: e.StudentID, Score: s}
				found = true
			}
		}
	}

	return best, found, nil
}

func (idx *SimilarityIndex) matchANN(query []float32) (Match, bool, error) {
	neighbors := idx.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return Match{}, false, nil
	}

	n := neighbors[0]
	if n.Key < 0 || n.Key >= len(idx.entries) {
		return Match{}, false, nil
	}
	student := idx.entries[n.Key].StudentID

	switch idx.metric {
	case MetricEuclidean:
		d := euclideanDistance(query, n.Value)
		if d >= idx.threshold {
			return Match{}, false, nil
		}
		return Match{StudentID: student, Score: d}, true, nil
	default:
		s := cosineSimilarity(query, n.Value)
		if s < idx.threshold {
			return Match{}, false, nil
		}
		return Match{StudentID: student, Score: s}, true, nil
	}
}

// maybeRebuildGraph builds the HNSW graph once the gallery is large enough
// for linear scan to hurt. Caller must hold the write lock.
func (idx *SimilarityIndex) maybeRebuildGraph() {
	if idx.annThreshold <= 0 || len(idx.entries) < idx.annThreshold {
		return
	}

	// Nodes are keyed by entry index (hnsw needs an ordered key, and a
	// student may have several descriptors); the graph is rebuilt on
	// every mutation so indices never go stale.
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	if idx.metric == MetricEuclidean {
		g.Distance = hnsw.EuclideanDistance
	}
	for i, e := range idx.entries {
		g.Add(hnsw.MakeNode(i, e.Vector))
	}
	idx.graph = g
}

// euclideanDistance computes the L2 distance between two equal-length vectors.
func euclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// cosineSimilarity computes cosine similarity. For L2-normalized vectors
// this is just the dot product, but norms are computed anyway so enrolled
// vectors from older models stay comparable.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(math.Min(1.0, math.Max(-1.0, s)))
}
