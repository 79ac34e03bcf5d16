package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

type property int

const (
	propertyDeveloper property = iota
	propertyPublisher
	propertyReleaseDate
	propertyGenres
)

// Label order matters: a container row is assigned to the first label it contains
// whose field is still unresolved.
var propertyLabels = []struct {
	label string
	field property
	name  string
}{
	{label: "desarrollador", field: propertyDeveloper, name: "developer"},
	{label: "editor", field: propertyPublisher, name: "publisher"},
	{label: "fecha de lanzamiento", field: propertyReleaseDate, name: "release_date"},
	{label: "género", field: propertyGenres, name: "genres"},
}

const (
	propertiesContainerSelector = "div[class*='GameProperties-module__gamePropertiesContainer___']"
	propertyTitleSelector       = "span[class*='GameProperties-module__propertyTitle___']"
	propertyValueSelector       = "span[class*='GameProperties-module__propertyValue___']"
)

type propertyStrategy func(root *goquery.Selection, props map[property]string)

// Applied in order; later strategies only fill fields still at the sentinel.
var propertyStrategies = []struct {
	name string
	run  propertyStrategy
}{
	{name: "heading", run: headingProperties},
	{name: "container", run: containerProperties},
}

func extractProperties(root *goquery.Selection) map[property]string {
	props := make(map[property]string, len(propertyLabels))
	for _, item := range propertyLabels {
		props[item.field] = domain.Unavailable
	}
	for _, strategy := range propertyStrategies {
		// A failing strategy leaves whatever earlier strategies resolved.
		guard("properties:"+strategy.name, func() string {
			strategy.run(root, props)
			return "ok"
		})
	}
	return props
}

// headingProperties reads <h3>Label</h3> followed by a sibling <div>value</div>.
func headingProperties(root *goquery.Selection, props map[property]string) {
	headings := root.Find("h3")
	for _, item := range propertyLabels {
		if props[item.field] != domain.Unavailable {
			continue
		}
		value := guard(item.name, func() string {
			var found string
			headings.EachWithBreak(func(_ int, h *goquery.Selection) bool {
				if !strings.Contains(strings.ToLower(h.Text()), item.label) {
					return true
				}
				found = h.NextAllFiltered("div").First().Text()
				return false
			})
			return found
		})
		props[item.field] = value
	}
}

// containerProperties scans the title/value span pairs of the properties table.
func containerProperties(root *goquery.Selection, props map[property]string) {
	root.Find(propertiesContainerSelector).Each(func(_ int, container *goquery.Selection) {
		titles := container.Find(propertyTitleSelector)
		values := container.Find(propertyValueSelector)
		n := titles.Length()
		if values.Length() < n {
			n = values.Length()
		}
		for i := 0; i < n; i++ {
			label := strings.ToLower(strings.TrimSpace(titles.Eq(i).Text()))
			value := strings.TrimSpace(values.Eq(i).Text())
			if value == "" {
				continue
			}
			for _, item := range propertyLabels {
				if strings.Contains(label, item.label) && props[item.field] == domain.Unavailable {
					props[item.field] = value
					break
				}
			}
		}
	})
}
