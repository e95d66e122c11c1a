package search

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storefront/internal/domain/product"
	"github.com/kailas-cloud/storefront/internal/domain/search/mode"
	"github.com/kailas-cloud/storefront/internal/domain/search/relevance"
	"github.com/kailas-cloud/storefront/internal/domain/search/request"
	"github.com/kailas-cloud/storefront/internal/domain/search/result"
	"github.com/kailas-cloud/storefront/internal/domain/vision"
	"github.com/kailas-cloud/storefront/internal/metrics"
)

// Config tunes image search and suggestions.
type Config struct {
	ImageKeywords   int
	ImageResultCap  int
	SuggestionLimit int
}

// DefaultConfig returns the conventional limits: 3 image keywords, 20 image
// results, 8 suggestions.
func DefaultConfig() Config {
	return Config{ImageKeywords: 3, ImageResultCap: 20, SuggestionLimit: relevance.DefaultMaxSuggestions}
}

// Service ranks catalog products against text queries and image keywords.
type Service struct {
	products ProductSource
	analyzer Analyzer
	engine   *relevance.Engine
	cfg      Config
	logger   *zap.Logger
}

// New creates a search service. A nil analyzer makes image search rely on
// file names only.
func New(products ProductSource, analyzer Analyzer, engine *relevance.Engine, cfg Config, logger *zap.Logger) *Service {
	if engine == nil {
		engine = relevance.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.ImageKeywords <= 0 {
		cfg.ImageKeywords = def.ImageKeywords
	}
	if cfg.ImageResultCap <= 0 {
		cfg.ImageResultCap = def.ImageResultCap
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = def.SuggestionLimit
	}
	return &Service{products: products, analyzer: analyzer, engine: engine, cfg: cfg, logger: logger}
}

// Search ranks products against the query. When nothing scores and the
// request allows expansion, expanded keyword variants are ranked instead.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Response, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return result.Response{}, err
	}

	results := s.rank(catalog, req.Query(), "", req.Limit())
	if len(results) == 0 && req.Expand() {
		results = s.rankExpanded(catalog, req.Query(), req.Limit())
	}

	resp := result.Response{
		Results:  results,
		Keywords: s.engine.ExtractKeywords(req.Query()),
		Mode:     mode.Text,
	}
	observe(mode.Text, len(results))
	return resp, nil
}

// Suggest returns product names matching a partial query.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.SuggestionLimit {
		limit = s.cfg.SuggestionLimit
	}

	names := make([]string, 0, len(catalog.products))
	seen := make(map[string]struct{}, len(catalog.products))
	for i := range catalog.products {
		name := catalog.products[i].Name
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	out := s.engine.Suggest(names, query, limit)
	metrics.SearchRequestsTotal.WithLabelValues("suggest").Inc()
	return out, nil
}

// SearchByImage derives keywords from the image, ranks products for each of
// the top keywords and merges the lists by product.
func (s *Service) SearchByImage(ctx context.Context, img *request.Image) (result.Response, error) {
	analysis := s.analyze(ctx, img)
	keywords := analysis.Top(s.cfg.ImageKeywords)

	resp := result.Response{
		Results:    []result.Result{},
		Keywords:   keywords,
		Mode:       mode.Image,
		Confidence: analysis.Confidence,
	}
	if len(keywords) == 0 {
		observe(mode.Image, 0)
		return resp, nil
	}

	catalog, err := s.load(ctx)
	if err != nil {
		return result.Response{}, err
	}

	// Each keyword is truncated like a suggestion list before the merge.
	lists := make([][]result.Result, 0, len(keywords))
	for _, kw := range keywords {
		lists = append(lists, s.rank(catalog, kw, kw, s.cfg.SuggestionLimit))
	}
	resp.Results = mergeByProduct(lists, s.cfg.ImageResultCap)

	observe(mode.Image, len(resp.Results))
	return resp, nil
}

func (s *Service) analyze(ctx context.Context, img *request.Image) vision.Analysis {
	if s.analyzer != nil {
		a, err := s.analyzer.Analyze(ctx, img.Data(), img.ContentType())
		if err == nil && len(a.Keywords) > 0 {
			return a
		}
		if err != nil {
			s.logger.Warn("Image analysis failed, using file name",
				zap.String("filename", img.Filename()), zap.Error(err))
		}
	}
	return vision.FromFilename(s.engine, img.Filename())
}

// rankExpanded ranks each expanded keyword variant and merges the hits.
func (s *Service) rankExpanded(catalog candidateSet, query string, limit int) []result.Result {
	terms := relevance.SortedTerms(relevance.ExpandTerms(s.engine.ExtractKeywords(query)))
	lists := make([][]result.Result, 0, len(terms))
	for _, term := range terms {
		lists = append(lists, s.rank(catalog, term, term, 0))
	}
	return mergeByProduct(lists, limit)
}

func (s *Service) rank(catalog candidateSet, query, keyword string, limit int) []result.Result {
	scored := s.engine.Rank(catalog.candidates, query, limit)
	out := make([]result.Result, len(scored))
	for i, sc := range scored {
		idx, _ := strconv.Atoi(sc.ID)
		out[i] = result.New(catalog.products[idx], sc.Score, keyword)
	}
	return out
}

// candidateSet pairs products with their candidate texts. Candidate IDs are
// indexes into products so duplicate product IDs cannot collide.
type candidateSet struct {
	products   []product.Product
	candidates []relevance.Candidate
}

func (s *Service) load(ctx context.Context) (candidateSet, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return candidateSet{}, fmt.Errorf("list products: %w", err)
	}
	cands := make([]relevance.Candidate, len(products))
	for i := range products {
		cands[i] = relevance.Candidate{ID: strconv.Itoa(i), Text: products[i].SearchText()}
	}
	return candidateSet{products: products, candidates: cands}, nil
}

func observe(m mode.Mode, n int) {
	metrics.SearchRequestsTotal.WithLabelValues(string(m)).Inc()
	metrics.SearchResults.WithLabelValues(string(m)).Observe(float64(n))
}
