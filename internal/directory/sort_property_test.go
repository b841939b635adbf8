package directory

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"makosite/internal/models"
)

func buildLinks(priorities, minutes []int) []models.Link {
	n := min(len(priorities), len(minutes))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	links := make([]models.Link, n)
	for i := range n {
		links[i] = models.Link{
			ID:        fmt.Sprintf("link-%d", i),
			Priority:  priorities[i],
			CreatedAt: base.Add(time.Duration(minutes[i]) * time.Minute),
			IsActive:  minutes[i]%3 != 0,
		}
	}
	return links
}

func TestProperty_SortOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("no adjacent pair is out of order", prop.ForAll(
		func(priorities, minutes []int) bool {
			links := buildLinks(priorities, minutes)
			sortLinks(links)
			for i := 1; i < len(links); i++ {
				if links[i].Less(links[i-1]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(models.MinPriority, models.MaxPriority)),
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.Property("sorting keeps every link", prop.ForAll(
		func(priorities, minutes []int) bool {
			links := buildLinks(priorities, minutes)
			seen := make(map[string]bool, len(links))
			for _, l := range links {
				seen[l.ID] = true
			}
			sortLinks(links)
			for _, l := range links {
				if !seen[l.ID] {
					return false
				}
				delete(seen, l.ID)
			}
			return len(seen) == 0
		},
		gen.SliceOf(gen.IntRange(models.MinPriority, models.MaxPriority)),
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.Property("active filter keeps order and drops only inactive links", prop.ForAll(
		func(priorities, minutes []int) bool {
			links := buildLinks(priorities, minutes)
			sortLinks(links)
			visible := activeOnly(links)
			for i, l := range visible {
				if !l.IsActive {
					return false
				}
				if i > 0 && l.Less(visible[i-1]) {
					return false
				}
			}
			active := 0
			for _, l := range links {
				if l.IsActive {
					active++
				}
			}
			return active == len(visible)
		},
		gen.SliceOf(gen.IntRange(models.MinPriority, models.MaxPriority)),
		gen.SliceOf(gen.IntRange(0, 500)),
	))

	properties.TestingRun(t)
}
