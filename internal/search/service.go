// Package search answers free-text catalog queries, locally by keywords or by
// escalating to language model collaborators.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
	"github.com/Nicortesm/GamepassCopilot/internal/keywords"
	"github.com/Nicortesm/GamepassCopilot/internal/metrics"
)

type Store interface {
	KeywordQuery(ctx context.Context, tokens []string) ([]domain.GameRecord, error)
	FetchByTitles(ctx context.Context, titles []string) ([]domain.GameRecord, error)
	Candidates(ctx context.Context, tokens []string) ([]domain.Candidate, error)
	Count(ctx context.Context) (int64, error)
}

type Classifier interface {
	Classify(ctx context.Context, query string) (domain.Classification, error)
}

type Recommender interface {
	Recommend(ctx context.Context, query string, candidates []domain.Candidate) ([]string, error)
}

type Service struct {
	store       Store
	classifier  Classifier
	recommender Recommender
	memo        *Memo
	logger      *slog.Logger
}

type ServiceOption func(*Service)

func WithMemo(memo *Memo) ServiceOption {
	return func(s *Service) {
		s.memo = memo
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store Store, classifier Classifier, recommender Recommender, opts ...ServiceOption) *Service {
	svc := &Service{
		store:       store,
		classifier:  classifier,
		recommender: recommender,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// InvalidateCache forgets memoized collaborator answers, e.g. after a catalog rebuild.
func (s *Service) InvalidateCache(ctx context.Context) {
	s.memo.Invalidate(ctx)
}

// Search never fails: degraded stages surface as notices and empty results.
// Only a blank query or a failed classification set Error.
func (s *Service) Search(ctx context.Context, request domain.SearchRequest) domain.SearchResponse {
	started := time.Now()
	mode := request.Mode
	if mode == "" {
		mode = domain.SearchModeAssistant
	}
	resp := domain.SearchResponse{
		Query: strings.TrimSpace(request.Query),
		Mode:  mode,
		Stage: domain.SearchStageNone,
		Items: []domain.GameRecord{},
	}

	switch {
	case resp.Query == "":
		resp.Error = domain.ErrInvalidQuery.Error()
	case mode == domain.SearchModeKeyword:
		s.searchKeywords(ctx, &resp)
	default:
		s.searchAssisted(ctx, &resp)
	}

	resp.TotalItems = len(resp.Items)
	resp.ElapsedMS = time.Since(started).Milliseconds()
	kind := string(resp.Kind)
	if kind == "" {
		kind = "none"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(resp.Mode), kind, string(resp.Stage)).Inc()
	s.logger.Info("search completed",
		slog.String("mode", string(resp.Mode)),
		slog.String("kind", kind),
		slog.String("stage", string(resp.Stage)),
		slog.Int("items", resp.TotalItems),
		slog.Int("notices", len(resp.Notices)),
		slog.Int64("elapsed_ms", resp.ElapsedMS),
	)
	return resp
}

func (s *Service) searchKeywords(ctx context.Context, resp *domain.SearchResponse) {
	terms := keywords.ParseTerms(resp.Query)
	resp.Keywords = terms
	if len(terms) == 0 {
		s.notice(resp, "keyword", "the query has no searchable terms")
		return
	}
	items, err := s.store.KeywordQuery(ctx, terms)
	if err != nil {
		s.degrade(resp, "keyword", "keyword search is unavailable", err)
		return
	}
	resp.Stage = domain.SearchStageKeyword
	resp.Items = items
}

// plan is what decide derives from a classification.
type plan struct {
	kind       domain.QueryKind
	localTerms []string
	filter     []string
	err        error
}

// decide maps a classification outcome to the stages to run. Only title and keyword
// queries with keywords get a local attempt; every other valid kind escalates.
func decide(c domain.Classification, err error) plan {
	if err != nil {
		return plan{kind: domain.QueryKindClassificationError, err: err}
	}
	switch c.Kind {
	case domain.QueryKindSpecificTitle, domain.QueryKindKeywordBased:
		return plan{
			kind:       c.Kind,
			localTerms: keywords.SplitTerms(c.Keywords...),
			filter:     keywords.ParseTerms(strings.Join(c.Keywords, " ")),
		}
	case domain.QueryKindSemanticRecommendation:
		return plan{
			kind:   c.Kind,
			filter: keywords.ParseTerms(strings.Join(c.Keywords, " ")),
		}
	default:
		return plan{
			kind: domain.QueryKindClassificationError,
			err:  fmt.Errorf("unsupported query kind %q", c.Kind),
		}
	}
}

func (s *Service) searchAssisted(ctx context.Context, resp *domain.SearchResponse) {
	query := resp.Query
	classification, err := memoize(ctx, s.memo, classifyKey(query), func(ctx context.Context) (domain.Classification, error) {
		return s.classifier.Classify(ctx, query)
	})
	p := decide(classification, err)
	resp.Kind = p.kind
	if p.err != nil {
		resp.Error = "could not classify the query: " + p.err.Error()
		metrics.SearchNoticesTotal.WithLabelValues("classify").Inc()
		s.logger.Warn("classification failed", slog.String("error", p.err.Error()))
		return
	}
	resp.Keywords = classification.Keywords

	if len(p.localTerms) > 0 {
		items, err := s.store.KeywordQuery(ctx, p.localTerms)
		if err != nil {
			s.degrade(resp, "keyword", "keyword search is unavailable", err)
		} else if len(items) > 0 {
			resp.Stage = domain.SearchStageKeyword
			resp.Items = items
			return
		}
	}
	s.recommend(ctx, resp, p.filter)
}

func (s *Service) recommend(ctx context.Context, resp *domain.SearchResponse, filter []string) {
	candidates, err := s.candidates(ctx, filter)
	if err != nil {
		s.degrade(resp, "recommendation", "the catalog could not be loaded for recommendations", err)
		return
	}
	if len(candidates) == 0 {
		s.notice(resp, "recommendation", "no catalog games with known genres are available for recommendations")
		return
	}

	query := resp.Query
	titles, err := memoize(ctx, s.memo, recommendKey(query, candidates), func(ctx context.Context) ([]string, error) {
		return s.recommender.Recommend(ctx, query, candidates)
	})
	if err != nil {
		s.degrade(resp, "recommendation", "the recommendation assistant is unavailable", err)
		return
	}
	resp.Stage = domain.SearchStageRecommendation
	if len(titles) == 0 {
		return
	}

	items, err := s.store.FetchByTitles(ctx, titles)
	if err != nil {
		s.degrade(resp, "resolve", "recommended games could not be loaded", err)
		return
	}
	if dropped := len(titles) - len(items); dropped > 0 {
		s.logger.Debug("recommended titles not in catalog", slog.Int("dropped", dropped))
	}
	resp.Items = items
}

// candidates prefers the subset matching any classifier keyword and falls back to
// the whole catalog when that subset is empty.
func (s *Service) candidates(ctx context.Context, filter []string) ([]domain.Candidate, error) {
	if len(filter) > 0 {
		subset, err := s.store.Candidates(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(subset) > 0 {
			return subset, nil
		}
	}
	return s.store.Candidates(ctx, nil)
}

func (s *Service) notice(resp *domain.SearchResponse, stage, message string) {
	resp.Notices = append(resp.Notices, message)
	metrics.SearchNoticesTotal.WithLabelValues(stage).Inc()
}

func (s *Service) degrade(resp *domain.SearchResponse, stage, message string, err error) {
	s.logger.Warn("search stage degraded",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	s.notice(resp, stage, message)
}
