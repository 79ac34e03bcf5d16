package domain

import "strings"

// Unavailable marks a field the extractor could not locate.
const Unavailable = "No disponible"

// GameRecord is one catalog row, keyed by Title.
type GameRecord struct {
	Title             string `json:"title"`
	URL               string `json:"url"`
	Price             string `json:"price"`
	Description       string `json:"description"`
	Developer         string `json:"developer"`
	Publisher         string `json:"publisher"`
	ReleaseDate       string `json:"release_date"`
	ImageURL          string `json:"image_url"`
	RatingAge         string `json:"rating_age"`
	RatingDescriptors string `json:"rating_descriptors"`
	Platforms         string `json:"platforms"`
	Features          string `json:"features"`
	Genres            string `json:"genres"`
	SearchKeywords    string `json:"search_keywords"`
}

func IsAvailable(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != Unavailable
}

// Candidate is the slice of a record handed to the recommendation collaborator.
type Candidate struct {
	Title       string `json:"title"`
	Genres      string `json:"genres"`
	Description string `json:"description,omitempty"`
	Features    string `json:"features,omitempty"`
}
