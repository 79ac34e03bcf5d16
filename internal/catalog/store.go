// Package catalog persists scraped game records in a single SQLite table.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

const (
	// SQLite caps bound parameters per statement; stay well below it.
	fetchChunkSize = 500
	snippetRunes   = 200
)

type gameRow struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	Title             string `gorm:"uniqueIndex;not null"`
	URL               string
	Price             string
	Description       string
	Developer         string
	Publisher         string
	ReleaseDate       string
	ImageURL          string
	RatingAge         string
	RatingDescriptors string
	Platforms         string
	Features          string
	Genres            string
	SearchKeywords    string
}

func (gameRow) TableName() string { return "games" }

var updateColumns = []string{
	"url", "price", "description", "developer", "publisher", "release_date", "image_url",
	"rating_age", "rating_descriptors", "platforms", "features", "genres", "search_keywords",
}

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the catalog database at path and migrates the schema.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.AutoMigrate(&gameRow{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Reset drops and recreates the games table.
func (s *Store) Reset(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Migrator().DropTable(&gameRow{}); err != nil {
		return fmt.Errorf("drop games: %w", err)
	}
	if err := db.AutoMigrate(&gameRow{}); err != nil {
		return fmt.Errorf("create games: %w", err)
	}
	return nil
}

// Upsert inserts rec or replaces every non-key column of the row with the same title.
func (s *Store) Upsert(ctx context.Context, rec domain.GameRecord) error {
	if strings.TrimSpace(rec.Title) == "" {
		return fmt.Errorf("%w: empty title", domain.ErrInvalidQuery)
	}
	row := toRow(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert %q: %w", rec.Title, err)
	}
	return nil
}

// FetchByTitles returns the stored records for titles in input order.
// Unknown titles are dropped and repeated titles are returned once.
func (s *Store) FetchByTitles(ctx context.Context, titles []string) ([]domain.GameRecord, error) {
	ordered := make([]string, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		ordered = append(ordered, title)
	}
	if len(ordered) == 0 {
		return []domain.GameRecord{}, nil
	}

	byTitle := make(map[string]gameRow, len(ordered))
	for start := 0; start < len(ordered); start += fetchChunkSize {
		end := min(start+fetchChunkSize, len(ordered))
		var rows []gameRow
		if err := s.db.WithContext(ctx).Where("title IN ?", ordered[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("fetch by titles: %w", err)
		}
		for _, row := range rows {
			byTitle[row.Title] = row
		}
	}

	out := make([]domain.GameRecord, 0, len(byTitle))
	for _, title := range ordered {
		if row, ok := byTitle[title]; ok {
			out = append(out, row.toDomain())
		}
	}
	return out, nil
}

// KeywordQuery returns rows whose keyword index contains every token, ordered by title.
func (s *Store) KeywordQuery(ctx context.Context, tokens []string) ([]domain.GameRecord, error) {
	patterns := likePatterns(tokens)
	if len(patterns) == 0 {
		return []domain.GameRecord{}, nil
	}
	q := s.db.WithContext(ctx).Model(&gameRow{})
	for _, p := range patterns {
		q = q.Where(`search_keywords LIKE ? ESCAPE '\'`, p)
	}
	var rows []gameRow
	if err := q.Order("title").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	return toDomainList(rows), nil
}

// Candidates returns the recommendation context: every row with known genres, or, when
// tokens are given, the subset matching at least one of them.
func (s *Store) Candidates(ctx context.Context, tokens []string) ([]domain.Candidate, error) {
	q := s.db.WithContext(ctx).Model(&gameRow{}).
		Select("title", "genres", "description", "features").
		Where("genres <> '' AND genres <> ?", domain.Unavailable)
	if patterns := likePatterns(tokens); len(patterns) > 0 {
		anyToken := s.db.Where(`search_keywords LIKE ? ESCAPE '\'`, patterns[0])
		for _, p := range patterns[1:] {
			anyToken = anyToken.Or(`search_keywords LIKE ? ESCAPE '\'`, p)
		}
		q = q.Where(anyToken)
	}
	var rows []gameRow
	if err := q.Order("title").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	out := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Candidate{
			Title:       row.Title,
			Genres:      row.Genres,
			Description: snippet(row.Description, snippetRunes),
			Features:    row.Features,
		})
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&gameRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePatterns(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		out = append(out, "%"+likeEscaper.Replace(token)+"%")
	}
	return out
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func toRow(rec domain.GameRecord) gameRow {
	return gameRow{
		Title:             strings.TrimSpace(rec.Title),
		URL:               rec.URL,
		Price:             rec.Price,
		Description:       rec.Description,
		Developer:         rec.Developer,
		Publisher:         rec.Publisher,
		ReleaseDate:       rec.ReleaseDate,
		ImageURL:          rec.ImageURL,
		RatingAge:         rec.RatingAge,
		RatingDescriptors: rec.RatingDescriptors,
		Platforms:         rec.Platforms,
		Features:          rec.Features,
		Genres:            rec.Genres,
		SearchKeywords:    rec.SearchKeywords,
	}
}

func (r gameRow) toDomain() domain.GameRecord {
	return domain.GameRecord{
		Title:             r.Title,
		URL:               r.URL,
		Price:             r.Price,
		Description:       r.Description,
		Developer:         r.Developer,
		Publisher:         r.Publisher,
		ReleaseDate:       r.ReleaseDate,
		ImageURL:          r.ImageURL,
		RatingAge:         r.RatingAge,
		RatingDescriptors: r.RatingDescriptors,
		Platforms:         r.Platforms,
		Features:          r.Features,
		Genres:            r.Genres,
		SearchKeywords:    r.SearchKeywords,
	}
}

func toDomainList(rows []gameRow) []domain.GameRecord {
	out := make([]domain.GameRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
