package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

const classifierPrompt = `Eres un clasificador de búsquedas para un catálogo de Xbox Game Pass.
Clasifica la petición del usuario en exactamente uno de estos tipos:
- "specific_title": el usuario nombra un juego concreto (por ejemplo "Halo Infinite").
- "keyword_based": el usuario describe el juego con palabras clave concretas (género, modo, tema).
- "semantic_recommendation": el usuario pide recomendaciones abiertas o por similitud ("algo relajante", "juegos como Overcooked").
Extrae también las palabras clave útiles para buscar en títulos, géneros y descripciones. Para "specific_title" incluye las palabras del título.
RESPONDE SOLAMENTE con un objeto JSON con las claves "type" y "keywords".
Ejemplo: {"type": "keyword_based", "keywords": ["terror", "cooperativo"]}`

// Classifier decides how a free-text query should be searched.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

type classificationPayload struct {
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
}

func (c *Classifier) Classify(ctx context.Context, query string) (domain.Classification, error) {
	var payload classificationPayload
	if err := c.client.completeJSON(ctx, "classify", classifierPrompt, query, &payload); err != nil {
		return domain.Classification{}, err
	}
	kind, ok := domain.ParseQueryKind(payload.Type)
	if !ok {
		return domain.Classification{}, fmt.Errorf("%w: unknown query type %q", ErrMalformedResponse, payload.Type)
	}
	return domain.Classification{Kind: kind, Keywords: cleanKeywords(payload.Keywords)}, nil
}

func cleanKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
