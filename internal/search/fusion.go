package search

import (
	"sort"

	"github.com/PALAN-K/palank-rag/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// rrfFusion combines keyword and vector result lists using Reciprocal
// Rank Fusion.
//
// Algorithm: score(d) = Σ 1 / (k + rank + 1) over the lists containing d,
// with 0-based ranks. A document absent from a list contributes nothing
// for that list, so consensus hits outrank single-leg hits near the top.
type rrfFusion struct {
	k int
}

// newRRFFusion creates a fusion instance; k <= 0 falls back to 60.
func newRRFFusion(k int) *rrfFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &rrfFusion{k: k}
}

// fuse merges the two ranked lists into fused results carrying provenance
// and the per-leg display payloads (snippet, chunk text). Metadata
// (URL, title) is attached later by the retriever.
func (f *rrfFusion) fuse(keyword []*store.KeywordResult, vector []*store.VectorResult) []*FusedResult {
	if len(keyword) == 0 && len(vector) == 0 {
		return []*FusedResult{}
	}

	type fusedState struct {
		result       *FusedResult
		keywordScore float64
		inKeyword    bool
		inVector     bool
	}

	states := make(map[int64]*fusedState, len(keyword)+len(vector))
	getOrCreate := func(docID int64) *fusedState {
		if st, ok := states[docID]; ok {
			return st
		}
		st := &fusedState{result: &FusedResult{DocID: docID}}
		states[docID] = st
		return st
	}

	for rank, r := range keyword {
		st := getOrCreate(r.DocID)
		st.inKeyword = true
		st.keywordScore = r.Score
		st.result.Snippet = r.Snippet
		st.result.Score += f.contribution(rank)
	}

	for rank, r := range vector {
		st := getOrCreate(r.DocID)
		st.inVector = true
		// A document can match on several chunks; keep the best-ranked one.
		if st.result.ChunkText == "" {
			st.result.ChunkText = r.ChunkText
		}
		st.result.Score += f.contribution(rank)
	}

	results := make([]*FusedResult, 0, len(states))
	keywordScores := make(map[int64]float64, len(states))
	for docID, st := range states {
		switch {
		case st.inKeyword && st.inVector:
			st.result.Provenance = ProvenanceHybrid
		case st.inKeyword:
			st.result.Provenance = ProvenanceKeyword
		default:
			st.result.Provenance = ProvenanceVector
		}
		keywordScores[docID] = st.keywordScore
		results = append(results, st.result)
	}

	// Descending fused score; ties broken deterministically so repeated
	// queries render identically.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if (a.Provenance == ProvenanceHybrid) != (b.Provenance == ProvenanceHybrid) {
			return a.Provenance == ProvenanceHybrid
		}
		if keywordScores[a.DocID] != keywordScores[b.DocID] {
			return keywordScores[a.DocID] > keywordScores[b.DocID]
		}
		return a.DocID < b.DocID
	})

	return results
}

// contribution is the RRF term for a 0-based rank. The sum over multiple
// chunk hits of one document is also sensible: more matching chunks means
// more evidence.
func (f *rrfFusion) contribution(rank int) float64 {
	return 1.0 / float64(f.k+rank+1)
}

// normalizeKeywordScore maps a native keyword score (which may be a
// negative raw BM25 value) onto a positive scale for single-leg listings.
// Comparable only within one keyword backend, never across methods.
func normalizeKeywordScore(score float64) float64 {
	if score < 0 {
		score = -score
	}
	return 1.0 / (1.0 + score)
}
