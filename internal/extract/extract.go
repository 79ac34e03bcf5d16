// Package extract turns a rendered game detail page into a domain.GameRecord.
//
// Every field is resolved through an ordered list of selector strategies. A field
// whose strategies all fail keeps the domain.Unavailable sentinel; only a missing
// title rejects the whole page.
package extract

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
	"github.com/Nicortesm/GamepassCopilot/internal/keywords"
)

// TitleSelector is also what the scraper waits for before reading a detail page.
const TitleSelector = "h1[class*='ProductDetailsHeader-module__productTitle']"

type textField struct {
	name      string
	selectors []string
	attr      string
	assign    func(*domain.GameRecord, string)
}

var directFields = []textField{
	{
		name:      "price",
		selectors: []string{"span[class*='Price-module__boldText']"},
		assign:    func(r *domain.GameRecord, v string) { r.Price = v },
	},
	{
		name:      "description",
		selectors: []string{"p[class*='Description-module__description']"},
		assign:    func(r *domain.GameRecord, v string) { r.Description = v },
	},
	{
		name:      "image_url",
		selectors: []string{"img[class*='ProductDetailsHeader-module__productImage']"},
		attr:      "src",
		assign:    func(r *domain.GameRecord, v string) { r.ImageURL = v },
	},
	{
		name:      "rating_age",
		selectors: []string{"a[class*='EsrbRating-module__link']"},
		assign:    func(r *domain.GameRecord, v string) { r.RatingAge = v },
	},
	{
		name:      "rating_descriptors",
		selectors: []string{"div[class*='EsrbRating-module__description']"},
		assign:    func(r *domain.GameRecord, v string) { r.RatingDescriptors = v },
	},
	{
		name:      "platforms",
		selectors: []string{"div[class*='AvailableOn-module__container___']"},
		assign:    func(r *domain.GameRecord, v string) { r.Platforms = v },
	},
	{
		name:      "features",
		selectors: []string{"ul[class*='Features-module__container___']"},
		assign:    func(r *domain.GameRecord, v string) { r.Features = v },
	},
}

// ParseHTML parses a page body into a queryable document.
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Extract builds a record from doc. The boolean is false when the page has no title.
func Extract(doc *goquery.Document, pageURL string) (domain.GameRecord, bool) {
	if doc == nil {
		return domain.GameRecord{}, false
	}
	title := guard("title", func() string {
		return firstText(doc.Selection, []string{TitleSelector}, "")
	})
	if !domain.IsAvailable(title) {
		return domain.GameRecord{}, false
	}

	rec := domain.GameRecord{
		Title: title,
		URL:   strings.TrimSpace(pageURL),
	}
	for _, field := range directFields {
		value := guard(field.name, func() string {
			return firstText(doc.Selection, field.selectors, field.attr)
		})
		field.assign(&rec, value)
	}

	props := extractProperties(doc.Selection)
	rec.Developer = props[propertyDeveloper]
	rec.Publisher = props[propertyPublisher]
	rec.ReleaseDate = props[propertyReleaseDate]
	rec.Genres = props[propertyGenres]

	rec.SearchKeywords = keywords.ForRecord(rec)
	return rec, true
}

// guard isolates one field: a panic or an empty result yields the sentinel.
func guard(field string, fn func() string) (value string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Default().Debug("field extraction failed",
				slog.String("field", field),
				slog.Any("error", recovered),
			)
			value = domain.Unavailable
		}
	}()
	value = strings.TrimSpace(fn())
	if value == "" {
		return domain.Unavailable
	}
	return value
}

func firstText(root *goquery.Selection, selectors []string, attr string) string {
	for _, selector := range selectors {
		node := root.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		var value string
		if attr != "" {
			value, _ = node.Attr(attr)
		} else {
			value = node.Text()
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

// ListingLinks returns the absolute game URLs found on a catalog listing page,
// de-duplicated in first-seen order.
func ListingLinks(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var links []string
	seen := make(map[string]struct{})
	doc.Find("div[class*='ProductCard-module__cardWrapper___']").Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Find("a[href]").First().Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "http") {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}
