package homepage

import (
	"maps"
	"slices"
	"strings"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
)

// MapDrafts converts a bookmarks config into create drafts. Owner is left
// empty for the session to fill in.
//
// The bookmark name is the title (abbr when the name is blank). Entries
// without href are skipped and a URL listed twice is kept once. Map keys
// are visited in sorted order so the result is stable.
func MapDrafts(config BookmarksConfig) []domain.Draft {
	drafts := make([]domain.Draft, 0)
	seen := make(map[string]struct{})

	for _, category := range config {
		for _, categoryName := range slices.Sorted(maps.Keys(category)) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range slices.Sorted(maps.Keys(bookmarkMap)) {
					entries := bookmarkMap[name]
					if len(entries) == 0 {
						continue
					}
					entry := entries[0]

					url := strings.TrimSpace(entry.Href)
					if url == "" || url == `""` {
						continue
					}
					if _, dup := seen[url]; dup {
						continue
					}

					title := strings.TrimSpace(name)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}
					if title == "" {
						title = url
					}

					seen[url] = struct{}{}
					drafts = append(drafts, domain.Draft{Title: title, URL: url})
				}
			}
		}
	}

	return drafts
}
