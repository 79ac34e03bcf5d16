package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

const recommenderPromptTemplate = `Eres un asistente experto en Xbox Game Pass. Tu tarea es analizar la petición del usuario y recomendar juegos del catálogo disponible: %s.
RESPONDE SOLAMENTE con un objeto JSON con una única clave "titles" que contenga una lista de strings con los NOMBRES EXACTOS de los juegos.
No añadas explicaciones. No inventes juegos. Si no encuentras nada, devuelve una lista vacía.
Ejemplo de respuesta si el usuario pide "juegos de cocina cooperativos": {"titles": ["Overcooked! 2", "Stardew Valley"]}`

// Recommender picks catalog titles for an open-ended request.
type Recommender struct {
	client *Client
}

func NewRecommender(client *Client) *Recommender {
	return &Recommender{client: client}
}

type candidatePayload struct {
	Title       string `json:"title"`
	Genres      string `json:"genres"`
	Description string `json:"description,omitempty"`
	Features    string `json:"features,omitempty"`
}

type recommendationPayload struct {
	Titles []string `json:"titles"`
}

// Recommend returns titles in the model's order. Titles are not validated
// against candidates; callers resolve them against the catalog.
func (r *Recommender) Recommend(ctx context.Context, query string, candidates []domain.Candidate) ([]string, error) {
	catalog := make([]candidatePayload, 0, len(candidates))
	for _, c := range candidates {
		entry := candidatePayload{Title: c.Title, Genres: c.Genres}
		if domain.IsAvailable(c.Description) {
			entry.Description = c.Description
		}
		if domain.IsAvailable(c.Features) {
			entry.Features = c.Features
		}
		catalog = append(catalog, entry)
	}
	encoded, err := json.Marshal(catalog)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}

	var payload recommendationPayload
	if err := r.client.completeJSON(ctx, "recommend", fmt.Sprintf(recommenderPromptTemplate, encoded), query, &payload); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(payload.Titles))
	for _, title := range payload.Titles {
		if title = strings.TrimSpace(title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}
