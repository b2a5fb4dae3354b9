package rag

import (
	"math"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/tidwall/gjson"
)

// Sigmoid maps an unbounded raw score into (0, 1).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Match is one raw entry of Matches.MatchList.
type Match struct {
	FileName string
	Content  string
	Score    float64
	// RerankScore is nil when the service did not rerank.
	RerankScore *float64
	Metadata    map[string]any
}

// RawScore prefers the rerank score over the retrieval score.
func (m Match) RawScore() float64 {
	if m.RerankScore != nil {
		return *m.RerankScore
	}
	return m.Score
}

// MatchesFromResponse reads Matches.MatchList in service order.
func MatchesFromResponse(resp *adbpg.Response) []Match {
	list := resp.Get("Matches.MatchList").Array()
	out := make([]Match, 0, len(list))
	for _, m := range list {
		match := Match{
			FileName: m.Get("FileName").String(),
			Content:  m.Get("Content").String(),
			Score:    m.Get("Score").Float(),
		}
		if rs := m.Get("RerankScore"); rs.Exists() && rs.Type != gjson.Null {
			v := rs.Float()
			match.RerankScore = &v
		}
		if md, ok := m.Get("Metadata").Value().(map[string]any); ok {
			match.Metadata = md
		}
		if match.Metadata == nil {
			match.Metadata = map[string]any{}
		}
		out = append(out, match)
	}
	return out
}

// PostProcess normalizes, filters, then truncates. Input order is kept.
func PostProcess(matches []Match, s Setting) []Record {
	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		score := Sigmoid(m.RawScore())
		if score < s.ScoreThreshold {
			continue
		}
		records = append(records, Record{
			Title:    m.FileName,
			Content:  m.Content,
			Score:    score,
			Metadata: m.Metadata,
		})
	}
	// A negative TopK drops that many records from the end.
	switch {
	case s.TopK >= 0 && len(records) > s.TopK:
		records = records[:s.TopK]
	case s.TopK < 0:
		records = records[:max(len(records)+s.TopK, 0)]
	}
	return records
}

// RerankResult is one entry of a Rerank response.
type RerankResult struct {
	// Index is the position of the document in the request.
	Index    int
	Document string
	// RelevanceScore is the raw service score.
	RelevanceScore float64
	// Score is RelevanceScore passed through Sigmoid.
	Score float64
}

// RerankResultsFromResponse reads Results.Results in service order.
func RerankResultsFromResponse(resp *adbpg.Response) []RerankResult {
	list := resp.Get("Results.Results").Array()
	out := make([]RerankResult, 0, len(list))
	for _, r := range list {
		raw := r.Get("RelevanceScore").Float()
		out = append(out, RerankResult{
			Index:          int(r.Get("Index").Int()),
			Document:       r.Get("Document").String(),
			RelevanceScore: raw,
			Score:          Sigmoid(raw),
		})
	}
	return out
}

// FilterRerank drops results below threshold. A nil threshold keeps all.
func FilterRerank(results []RerankResult, threshold *float64) []RerankResult {
	if threshold == nil {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= *threshold {
			out = append(out, r)
		}
	}
	return out
}
