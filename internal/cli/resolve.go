package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/srmsweets/hrportal/internal/models"
)

const maxSuggestions = 5

func shortID(id string) string {
	const limit = 8
	if len(id) <= limit {
		return id
	}
	return id[:limit]
}

// findGroup resolves a group by exact id, case-insensitive name or unique
// id prefix.
func findGroup(groups []models.Group, idOrName string) (models.Group, error) {
	ref := strings.TrimSpace(idOrName)
	if ref == "" {
		return models.Group{}, errors.New("group name or ID required")
	}

	for _, g := range groups {
		if g.ID == ref {
			return g, nil
		}
	}

	var matches []models.Group
	for _, g := range groups {
		if strings.EqualFold(g.Name, ref) {
			matches = append(matches, g)
		}
	}
	if len(matches) == 0 {
		for _, g := range groups {
			if strings.HasPrefix(g.ID, ref) {
				matches = append(matches, g)
			}
		}
	}

	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		return models.Group{}, fmt.Errorf("group '%s' is ambiguous; matches: %s (use the full ID)", ref, formatGroupMatches(matches))
	case len(groups) == 0:
		return models.Group{}, fmt.Errorf("group '%s' not found (you are not in any group yet)", ref)
	default:
		return models.Group{}, fmt.Errorf("group '%s' not found. Example input: '%s' or '%s'", ref, groups[0].Name, shortID(groups[0].ID))
	}
}

func formatGroupMatches(groups []models.Group) string {
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, fmt.Sprintf("%s (%s)", g.Name, shortID(g.ID)))
	}
	sort.Strings(labels)
	if len(labels) > maxSuggestions {
		labels = append(labels[:maxSuggestions], "...")
	}
	return strings.Join(labels, ", ")
}
