package homepage

import (
	"errors"
	"sort"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// ErrNoBookmarks is returned when a file holds no importable entry.
var ErrNoBookmarks = errors.New("no valid bookmarks found in homepage config")

// Draft is a bookmark ready to be created: validated and trimmed.
type Draft struct {
	Title string
	URL   string
	Group string // Homepage category or service group
}

// collector dedupes drafts by URL, keeping the first title seen.
type collector struct {
	seen   map[string]bool
	drafts []Draft
}

func (c *collector) add(group, title, href string) {
	title, href, err := domain.ValidateBookmark(title, href)
	if err != nil || c.seen[href] {
		return
	}
	c.seen[href] = true
	c.drafts = append(c.drafts, Draft{Title: title, URL: href, Group: group})
}

func (c *collector) result() ([]Draft, error) {
	if len(c.drafts) == 0 {
		return nil, ErrNoBookmarks
	}
	return c.drafts, nil
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

// MapBookmarks converts bookmarks.yaml entries. The bookmark name is the
// title; abbr is only used when the name is blank.
func MapBookmarks(config BookmarksConfig) ([]Draft, error) {
	c := newCollector()
	for _, category := range config {
		for _, group := range sortedKeys(category) {
			for _, bookmarkMap := range category[group] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					if len(entries) == 0 {
						continue
					}
					entry := entries[0] // Take the first (and only) entry

					title := name
					if title == "" {
						title = entry.Abbr
					}
					c.add(group, title, entry.Href)
				}
			}
		}
	}
	return c.result()
}

// MapServices converts services.yaml entries: the service name is the
// title and href the URL. Services without a usable href are skipped.
func MapServices(config ServicesConfig) ([]Draft, error) {
	c := newCollector()
	for _, groupMap := range config {
		for _, group := range sortedKeys(groupMap) {
			for _, serviceMap := range groupMap[group] {
				for _, name := range sortedKeys(serviceMap) {
					c.add(group, name, serviceMap[name].Href)
				}
			}
		}
	}
	return c.result()
}

// sortedKeys keeps the output stable across runs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
