package domain

import "strings"

type QueryKind string

const (
	QueryKindSpecificTitle          QueryKind = "specific_title"
	QueryKindKeywordBased           QueryKind = "keyword_based"
	QueryKindSemanticRecommendation QueryKind = "semantic_recommendation"
	QueryKindClassificationError    QueryKind = "error"
)

// ParseQueryKind accepts only the three kinds a classifier may return.
func ParseQueryKind(raw string) (QueryKind, bool) {
	switch QueryKind(strings.ToLower(strings.TrimSpace(raw))) {
	case QueryKindSpecificTitle:
		return QueryKindSpecificTitle, true
	case QueryKindKeywordBased:
		return QueryKindKeywordBased, true
	case QueryKindSemanticRecommendation:
		return QueryKindSemanticRecommendation, true
	default:
		return QueryKindClassificationError, false
	}
}

type Classification struct {
	Kind     QueryKind `json:"type"`
	Keywords []string  `json:"keywords"`
}

type SearchMode string

const (
	SearchModeKeyword   SearchMode = "keyword"
	SearchModeAssistant SearchMode = "assistant"
)

// ParseSearchMode maps the UI toggle values; empty means assistant.
func ParseSearchMode(raw string) (SearchMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "assistant", "ai":
		return SearchModeAssistant, true
	case "keyword", "keywords":
		return SearchModeKeyword, true
	default:
		return "", false
	}
}

type SearchStage string

const (
	SearchStageNone           SearchStage = "none"
	SearchStageKeyword        SearchStage = "keyword"
	SearchStageRecommendation SearchStage = "recommendation"
)

type SearchRequest struct {
	Query string
	Mode  SearchMode
}

type SearchResponse struct {
	Query      string       `json:"query"`
	Mode       SearchMode   `json:"mode"`
	Kind       QueryKind    `json:"kind,omitempty"`
	Keywords   []string     `json:"keywords,omitempty"`
	Stage      SearchStage  `json:"stage"`
	Items      []GameRecord `json:"items"`
	TotalItems int          `json:"totalItems"`
	Notices    []string     `json:"notices,omitempty"`
	Error      string       `json:"error,omitempty"`
	ElapsedMS  int64        `json:"elapsedMs"`
}
