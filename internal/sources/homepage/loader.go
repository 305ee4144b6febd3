package homepage

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Format selects which Homepage file is read.
type Format string

const (
	FormatBookmarks Format = "bookmarks" // bookmarks.yaml
	FormatServices  Format = "services"  // services.yaml
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Loader reads a Homepage config file and turns it into bookmark drafts.
type Loader struct {
	filePath string
	format   Format
}

// NewLoader creates a loader for filePath in the given format.
func NewLoader(filePath string, format Format) (*Loader, error) {
	switch format {
	case FormatBookmarks, FormatServices:
	default:
		return nil, fmt.Errorf("unknown homepage format %q (want bookmarks or services)", format)
	}
	return &Loader{filePath: filePath, format: format}, nil
}

// Load reads, parses and maps the file.
func (l *Loader) Load() ([]Draft, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", l.format, err)
	}

	// Strip Homepage template variables ({{HOMEPAGE_VAR_...}})
	data = stripTemplateVariables(data)

	if l.format == FormatServices {
		var config ServicesConfig
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse services yaml: %w", err)
		}
		return MapServices(config)
	}

	var config BookmarksConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}
	return MapBookmarks(config)
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
