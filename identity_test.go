package gtfsmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopOnlyFeed(t *testing.T, id string, stops ...map[string]string) *Feed {
	t.Helper()
	f := newTestFeed(id)
	for _, fields := range stops {
		putRec(t, f, KindStops, fields)
	}
	return f
}

func TestResolveIdentityTransitiveClosure(t *testing.T) {
	a := stopOnlyFeed(t, "A", map[string]string{"stop_id": "S1"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2"})
	c := stopOnlyFeed(t, "C", map[string]string{"stop_id": "S3"})
	cfg := testConfig(t, "A", "B", "C")
	// A:S1~B:S2 and B:S2~C:S3 imply A:S1~C:S3.
	cfg.StopCorrespondences = [][]string{{"A:S1", "B:S2"}, {"B:S2", "C:S3"}}

	groups, err := resolveIdentity([]*Feed{a, b, c}, cfg)
	require.NoError(t, err)

	canon, ok := groups.canonicalFor(spaceStop, entityRef{"C", "S3"})
	require.True(t, ok)
	assert.Equal(t, entityRef{"A", "S1"}, canon)
	assert.Len(t, groups.members[spaceStop][canon], 3)
}

func TestResolveIdentityCanonicalFollowsPreference(t *testing.T) {
	a := stopOnlyFeed(t, "A", map[string]string{"stop_id": "S1"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2"})
	cfg := testConfig(t, "B", "A")
	cfg.StopCorrespondences = [][]string{{"A:S1", "B:S2"}}

	groups, err := resolveIdentity([]*Feed{a, b}, cfg)
	require.NoError(t, err)

	canon, ok := groups.canonicalFor(spaceStop, entityRef{"A", "S1"})
	require.True(t, ok)
	assert.Equal(t, entityRef{"B", "S2"}, canon)
}

func TestResolveIdentityAmbiguousClosure(t *testing.T) {
	a := stopOnlyFeed(t, "A",
		map[string]string{"stop_id": "S1"},
		map[string]string{"stop_id": "S3"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2"})
	cfg := testConfig(t, "A", "B")
	// Closure pulls S1 and S3, both from feed A, into one group.
	cfg.StopCorrespondences = [][]string{{"A:S1", "B:S2"}, {"A:S3", "B:S2"}}

	_, err := resolveIdentity([]*Feed{a, b}, cfg)
	var ambiguous *AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, KindStops, ambiguous.Kind)
	assert.Len(t, ambiguous.Keys, 3)
	assert.Contains(t, ambiguous.Keys, "A:S1")
	assert.Contains(t, ambiguous.Keys, "A:S3")
}

func TestResolveIdentityUnknownFeed(t *testing.T) {
	a := stopOnlyFeed(t, "A", map[string]string{"stop_id": "S1"})
	cfg := testConfig(t, "A")
	cfg.StopCorrespondences = [][]string{{"A:S1", "Z:S2"}}

	_, err := resolveIdentity([]*Feed{a}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feed")
}

func TestResolveIdentityUndeclaredStop(t *testing.T) {
	a := stopOnlyFeed(t, "A", map[string]string{"stop_id": "S1"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2"})
	cfg := testConfig(t, "A", "B")
	cfg.StopCorrespondences = [][]string{{"A:S9", "B:S2"}}

	_, err := resolveIdentity([]*Feed{a, b}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never declares")
}

func TestResolveIdentityStopCodes(t *testing.T) {
	a := stopOnlyFeed(t, "A",
		map[string]string{"stop_id": "S1", "stop_code": "1001"},
		map[string]string{"stop_id": "S5"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2", "stop_code": " 1001 "})
	cfg := testConfig(t, "A", "B")
	cfg.MatchStopCodes = true

	groups, err := resolveIdentity([]*Feed{a, b}, cfg)
	require.NoError(t, err)

	canon, ok := groups.canonicalFor(spaceStop, entityRef{"B", "S2"})
	require.True(t, ok)
	assert.Equal(t, entityRef{"A", "S1"}, canon)

	// The codeless stop stays on its own.
	_, ok = groups.canonicalFor(spaceStop, entityRef{"A", "S5"})
	assert.False(t, ok)
}

func TestResolveIdentityStopCodesSingleFeed(t *testing.T) {
	// The same code twice within one feed carries no cross-feed signal.
	a := stopOnlyFeed(t, "A",
		map[string]string{"stop_id": "S1", "stop_code": "X"},
		map[string]string{"stop_id": "S3", "stop_code": "X"})
	b := stopOnlyFeed(t, "B", map[string]string{"stop_id": "S2"})
	cfg := testConfig(t, "A", "B")
	cfg.MatchStopCodes = true

	groups, err := resolveIdentity([]*Feed{a, b}, cfg)
	require.NoError(t, err)
	_, ok := groups.canonicalFor(spaceStop, entityRef{"A", "S1"})
	assert.False(t, ok)
}

func TestFeedRanks(t *testing.T) {
	feeds := []*Feed{newTestFeed("C"), newTestFeed("A"), newTestFeed("B")}
	cfg := testConfig(t, "A", "B")

	ranks := feedRanks(cfg, feeds)
	assert.Equal(t, 0, ranks["A"])
	assert.Equal(t, 1, ranks["B"])
	// Unlisted feeds rank after all listed ones.
	assert.Equal(t, 2, ranks["C"])
}
