package gtfsmerge

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultCoordTolerance = 0.003

// Config drives the merge: feed precedence, the cross-feed
// correspondence tables, and the optional output normalization rules.
type Config struct {
	// PreferFeedOrder breaks ties everywhere a single value must be
	// chosen from a merge group: the first listed feed wins. Feeds not
	// listed rank after all listed ones, in ingestion order.
	PreferFeedOrder []string `yaml:"preferFeedOrder" validate:"required,min=1,dive,required"`

	// CoordToleranceDeg is the maximum coordinate distance, in degrees,
	// between merged stops. 0 means the default (0.003).
	CoordToleranceDeg float64 `yaml:"coordToleranceDeg" validate:"gte=0"`

	// MatchStopCodes additionally merges stops across feeds on an exact
	// normalized stop_code match.
	MatchStopCodes bool `yaml:"matchStopCodes"`

	// StopCorrespondences lists groups of feed-qualified stop ids
	// ("A:S1") declared to be the same physical stop.
	StopCorrespondences [][]string `yaml:"stopCorrespondences" validate:"dive,min=2,dive,required"`

	// AgencyAliases lists groups of feed-qualified agency ids declared
	// to be the same operator.
	AgencyAliases [][]string `yaml:"agencyAliases" validate:"dive,min=2,dive,required"`

	// Publisher, when set, overrides the merged feed_info row.
	Publisher *PublisherConfig `yaml:"publisher"`

	// RouteColors recolors routes whose short name matches a pattern.
	RouteColors []RouteColorRule `yaml:"routeColors" validate:"dive"`

	// UpperCaseWords are kept fully upper case when route long names
	// are title-cased.
	UpperCaseWords []string `yaml:"upperCaseWords"`
}

type PublisherConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url" validate:"omitempty,url"`
	Version string `yaml:"version"`
}

// RouteColorRule recolors routes of Type whose short name matches the
// ShortName pattern ("*" matches any run of characters). The text
// color is derived from the color's luminance.
type RouteColorRule struct {
	ShortName string `yaml:"shortName" validate:"required"`
	Type      string `yaml:"type"`
	Color     string `yaml:"color" validate:"required,hexcolor"`
}

// LoadConfig reads and validates a merge configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.PreferFeedOrder))
	for _, id := range c.PreferFeedOrder {
		if seen[id] {
			return fmt.Errorf("feed %q listed twice in preferFeedOrder", id)
		}
		seen[id] = true
	}
	for _, group := range c.StopCorrespondences {
		for _, ref := range group {
			if _, _, err := splitRef(ref); err != nil {
				return fmt.Errorf("stopCorrespondences: %w", err)
			}
		}
	}
	for _, group := range c.AgencyAliases {
		for _, ref := range group {
			if _, _, err := splitRef(ref); err != nil {
				return fmt.Errorf("agencyAliases: %w", err)
			}
		}
	}
	if c.CoordToleranceDeg == 0 {
		c.CoordToleranceDeg = defaultCoordTolerance
	}
	return nil
}

// splitRef splits a feed-qualified identifier like "A:S1".
func splitRef(ref string) (feed, id string, err error) {
	feed, id, ok := strings.Cut(ref, ":")
	if !ok || feed == "" || id == "" {
		return "", "", fmt.Errorf("malformed feed-qualified id %q, want feed:id", ref)
	}
	return feed, id, nil
}
