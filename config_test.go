package gtfsmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merge.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
preferFeedOrder: [A, B]
coordToleranceDeg: 0.01
matchStopCodes: true
stopCorrespondences:
  - ["A:S1", "B:S2"]
agencyAliases:
  - ["A:1", "B:1"]
publisher:
  name: Example Transit
  url: https://example.com/gtfs/
  version: "2026.08"
routeColors:
  - shortName: "T-*"
    type: "3"
    color: "#ffd403"
upperCaseWords: [PKP]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, cfg.PreferFeedOrder)
	assert.Equal(t, 0.01, cfg.CoordToleranceDeg)
	assert.True(t, cfg.MatchStopCodes)
	assert.Equal(t, [][]string{{"A:S1", "B:S2"}}, cfg.StopCorrespondences)
	assert.Equal(t, [][]string{{"A:1", "B:1"}}, cfg.AgencyAliases)
	require.NotNil(t, cfg.Publisher)
	assert.Equal(t, "Example Transit", cfg.Publisher.Name)
	require.Len(t, cfg.RouteColors, 1)
	assert.Equal(t, "T-*", cfg.RouteColors[0].ShortName)
	assert.Equal(t, []string{"PKP"}, cfg.UpperCaseWords)
}

func TestLoadConfigDefaultTolerance(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "preferFeedOrder: [A]\n"))
	require.NoError(t, err)
	assert.Equal(t, defaultCoordTolerance, cfg.CoordToleranceDeg)
}

func TestLoadConfigMissingPreference(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "matchStopCodes: true\n"))
	require.Error(t, err)
}

func TestLoadConfigNegativeTolerance(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "preferFeedOrder: [A]\ncoordToleranceDeg: -0.1\n"))
	require.Error(t, err)
}

func TestLoadConfigMalformedRef(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
preferFeedOrder: [A, B]
stopCorrespondences:
  - [AS1, "B:S2"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestLoadConfigBadColor(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
preferFeedOrder: [A]
routeColors:
  - shortName: "5"
    color: red
`))
	require.Error(t, err)
}

func TestConfigDuplicatePreference(t *testing.T) {
	cfg := &Config{PreferFeedOrder: []string{"A", "A"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}

func TestSplitRef(t *testing.T) {
	feed, id, err := splitRef("A:S1")
	require.NoError(t, err)
	assert.Equal(t, "A", feed)
	assert.Equal(t, "S1", id)

	// Only the first colon splits; ids may contain colons.
	feed, id, err = splitRef("A:S:1")
	require.NoError(t, err)
	assert.Equal(t, "A", feed)
	assert.Equal(t, "S:1", id)

	for _, bad := range []string{"", "A", "A:", ":S1"} {
		_, _, err := splitRef(bad)
		assert.Error(t, err, bad)
	}
}
