package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	ScrapePagesTotal.WithLabelValues("saved").Inc()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "gamepass_scrape_pages_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected gamepass_scrape_pages_total to be gathered")
	}
}
