package keywords

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

func TestDeriveSortsAndDeduplicates(t *testing.T) {
	got := Derive("Halo Infinite", "Shooter", domain.Unavailable, "Master Chief returns. Halo!")
	want := "chief disponible halo infinite master returns shooter"
	if got != want {
		t.Fatalf("Derive() = %q, want %q", got, want)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	first := Derive("Stardew Valley", "Simulación, Rol", "Cooperativo en línea", "Hereda la granja de tu abuelo.")
	for i := 0; i < 5; i++ {
		if again := Derive("Stardew Valley", "Simulación, Rol", "Cooperativo en línea", "Hereda la granja de tu abuelo."); again != first {
			t.Fatalf("run %d produced %q, first run %q", i, again, first)
		}
	}
}

func TestDeriveKeepsUnicodeWords(t *testing.T) {
	got := Derive("Género", "Acción", "", "")
	if got != "acción género" {
		t.Fatalf("unexpected tokens: %q", got)
	}
}

func TestDeriveTokenRules(t *testing.T) {
	got := Derive("Cyberpunk 2077", "", "", "an ox foo_bar")
	if got != "2077 cyberpunk foo_bar" {
		t.Fatalf("unexpected tokens: %q", got)
	}
}

func TestDeriveUsesDescriptionPrefixOnly(t *testing.T) {
	description := strings.Repeat("x", 198) + " abcdef"
	got := Derive("", "", "", description)
	if strings.Contains(got, "abcdef") {
		t.Fatalf("text beyond 200 characters leaked into keywords: %q", got)
	}
	if got != strings.Repeat("x", 198) {
		t.Fatalf("unexpected tokens: %q", got)
	}
}

func TestDeriveEmptyInput(t *testing.T) {
	if got := Derive("", "", "", ""); got != "" {
		t.Fatalf("expected empty keywords, got %q", got)
	}
}

func TestForRecord(t *testing.T) {
	rec := domain.GameRecord{Title: "Forza Horizon", Genres: "Carreras", Features: "", Description: "Festival"}
	if got := ForRecord(rec); got != "carreras festival forza horizon" {
		t.Fatalf("unexpected keywords: %q", got)
	}
}

func TestParseTermsDropsStopWords(t *testing.T) {
	got := ParseTerms("Un juego de Terror, cooperativo; con amigos")
	want := []string{"terror", "cooperativo", "amigos"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTerms() = %v, want %v", got, want)
	}
}

func TestParseTermsFoldsAccentsForStopWords(t *testing.T) {
	got := ParseTerms("algo así relajante relajante")
	want := []string{"relajante"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTerms() = %v, want %v", got, want)
	}
}

func TestParseTermsOnlyStopWords(t *testing.T) {
	if got := ParseTerms("juego de la"); len(got) != 0 {
		t.Fatalf("expected no terms, got %v", got)
	}
}

func TestSplitTermsKeepsStopWords(t *testing.T) {
	got := SplitTerms("Halo Infinite", "halo", "juego de rol")
	want := []string{"halo", "infinite", "juego", "de", "rol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitTerms() = %v, want %v", got, want)
	}
}

func TestDeriveFoldsDottedCapitalI(t *testing.T) {
	if got := Derive("İstanbul Nights", "", "", ""); got != "istanbul nights" {
		t.Fatalf("Derive = %q", got)
	}
}
