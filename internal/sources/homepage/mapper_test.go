package homepage

import (
	"errors"
	"testing"
)

func TestMapServices(t *testing.T) {
	config := ServicesConfig{
		{
			"Infrastructure": []map[string]ServiceProps{
				{"Traefik": {Icon: "traefik.svg", Href: "https://traefik.domain.ext"}},
				{"AdGuard Home": {Href: " https://adguard.domain.ext "}},
			},
		},
		{
			"Media": []map[string]ServiceProps{
				{"Jellyfin": {Href: "https://jellyfin.domain.ext"}},
			},
		},
	}

	drafts, err := MapServices(config)
	if err != nil {
		t.Fatalf("MapServices() error = %v", err)
	}
	if len(drafts) != 3 {
		t.Fatalf("MapServices() returned %d drafts, want 3", len(drafts))
	}
	if drafts[1].URL != "https://adguard.domain.ext" {
		t.Errorf("href should be trimmed, got %q", drafts[1].URL)
	}
	if drafts[2].Group != "Media" {
		t.Errorf("group = %q, want Media", drafts[2].Group)
	}
}

func TestMapServicesSkipsInvalid(t *testing.T) {
	config := ServicesConfig{
		{
			"Test": []map[string]ServiceProps{
				{"Relative": {Href: "not-a-valid-url"}},
				{"Empty": {Href: ""}},
			},
		},
	}

	drafts, err := MapServices(config)
	if !errors.Is(err, ErrNoBookmarks) {
		t.Errorf("MapServices() error = %v, want ErrNoBookmarks", err)
	}
	if drafts != nil {
		t.Errorf("MapServices() should return nil drafts, got %v", drafts)
	}
}

func TestMapBookmarksDedupesByURL(t *testing.T) {
	config := BookmarksConfig{
		{"Dev": {
			{"Go": {{Href: "https://go.dev"}}},
			{"Go again": {{Href: "https://go.dev"}}},
			{"": {{Abbr: "RD", Href: "https://react.dev"}}},
			{"No entry": {}},
		}},
	}

	drafts, err := MapBookmarks(config)
	if err != nil {
		t.Fatalf("MapBookmarks() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("MapBookmarks() = %+v, want 2 drafts", drafts)
	}
	if drafts[0].Title != "Go" {
		t.Errorf("first title wins, got %q", drafts[0].Title)
	}
	if drafts[1].Title != "RD" {
		t.Errorf("blank name should fall back to abbr, got %q", drafts[1].Title)
	}
}

func TestMapBookmarksEmptyConfig(t *testing.T) {
	if _, err := MapBookmarks(BookmarksConfig{}); !errors.Is(err, ErrNoBookmarks) {
		t.Errorf("MapBookmarks() error = %v, want ErrNoBookmarks", err)
	}
}
