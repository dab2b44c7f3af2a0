package scoring

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ScreenResult pairs a request's symbol with its scan outcome. Exactly one of
// Result and Err is set.
type ScreenResult struct {
	Symbol string
	Result *ScanResult
	Err    error
}

// Screener scans many symbols through one pipeline on a bounded worker pool.
type Screener struct {
	pipeline    *Pipeline
	concurrency int
}

// NewScreener creates a screener. Non-positive concurrency defaults to 4.
func NewScreener(pipeline *Pipeline, concurrency int) *Screener {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Screener{
		pipeline:    pipeline,
		concurrency: concurrency,
	}
}

// ScanAll scans every request and returns results in input order. Once ctx
// is cancelled no further requests are started; those left unscanned carry
// the context error. Per-symbol rejections never fail the batch.
func (s *Screener) ScanAll(ctx context.Context, requests []ScanRequest) ([]ScreenResult, error) {
	results := make([]ScreenResult, len(requests))
	if len(requests) == 0 {
		return results, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i := range requests {
		results[i].Symbol = requests[i].Symbol
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		i := i
		g.Go(func() error {
			res, err := s.pipeline.Scan(ctx, requests[i])
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// Ranked flattens successful results into one candidate list ordered by score
// descending, then confidence descending. Input order breaks remaining ties.
func Ranked(results []ScreenResult) []ScoredCandidate {
	var out []ScoredCandidate
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		out = append(out, r.Result.Candidates...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// TopPerPattern keeps at most n candidates of each pattern type, preserving
// the input order.
func TopPerPattern(cands []ScoredCandidate, n int) []ScoredCandidate {
	if n <= 0 {
		return cands
	}
	counts := make(map[string]int)
	var out []ScoredCandidate
	for _, c := range cands {
		key := string(c.Type)
		if counts[key] >= n {
			continue
		}
		counts[key]++
		out = append(out, c)
	}
	return out
}
