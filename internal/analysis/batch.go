package analysis

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

// DefaultBatchConcurrency bounds parallel analyses in a batch.
const DefaultBatchConcurrency = 4

// BatchResult holds the analyses of a batch in input order.
type BatchResult struct {
	TotalAnalyzed int                        `json:"total_analyzed"`
	Results       []extractor.AnalysisResult `json:"results"`
}

// AnalyzeBatch analyses every non-blank request with at most limit running
// at once. Blank entries are skipped. Results keep the order of the
// remaining requests.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, reqs []Request, limit int) BatchResult {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	valid := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if strings.TrimSpace(r.Text) != "" {
			valid = append(valid, r)
		}
	}

	results := make([]extractor.AnalysisResult, len(valid))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range valid {
		g.Go(func() error {
			results[i] = p.Run(ctx, req).Result
			return nil
		})
	}
	_ = g.Wait()

	return BatchResult{TotalAnalyzed: len(results), Results: results}
}
