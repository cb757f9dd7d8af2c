package gtfsmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopRec(feed, id string, fields map[string]string) *Record {
	fields["stop_id"] = id
	return &Record{Key: id, Fields: fields, Feeds: []string{feed}}
}

func TestReconcileGroupDescriptiveFields(t *testing.T) {
	a := stopRec("A", "S1", map[string]string{
		"stop_name": "Central", "stop_lat": "50.0", "stop_lon": "19.0",
	})
	b := stopRec("B", "S2", map[string]string{
		"stop_name": "Centralna", "stop_code": "1001",
		"stop_lat": "50.0001", "stop_lon": "19.0001",
	})

	merged, err := reconcileGroup(KindStops, []*Record{a, b}, 0.003)
	require.NoError(t, err)
	// The most preferred member wins; gaps are filled from the rest.
	assert.Equal(t, "Central", merged.Get("stop_name"))
	assert.Equal(t, "1001", merged.Get("stop_code"))
	assert.Equal(t, "50.0", merged.Get("stop_lat"))
	assert.Equal(t, "19.0", merged.Get("stop_lon"))
	assert.Equal(t, []string{"A", "B"}, merged.Feeds)
}

func TestReconcileGroupCoordinatesOutOfTolerance(t *testing.T) {
	a := stopRec("A", "S1", map[string]string{"stop_lat": "50.0", "stop_lon": "19.0"})
	b := stopRec("B", "S2", map[string]string{"stop_lat": "51.5", "stop_lon": "21.0"})

	_, err := reconcileGroup(KindStops, []*Record{a, b}, 0.01)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "stop_lat,stop_lon", conflict.Field)
	assert.Equal(t, "A:S1", conflict.KeyA)
	assert.Equal(t, "50.0,19.0", conflict.ValueA)
	assert.Equal(t, "B:S2", conflict.KeyB)
	assert.Equal(t, "51.5,21.0", conflict.ValueB)
}

func TestReconcileGroupCoordinatesMissing(t *testing.T) {
	// One member without coordinates never conflicts.
	a := stopRec("A", "S1", map[string]string{"stop_name": "Central"})
	b := stopRec("B", "S2", map[string]string{"stop_lat": "50.0", "stop_lon": "19.0"})

	merged, err := reconcileGroup(KindStops, []*Record{a, b}, 0.003)
	require.NoError(t, err)
	assert.Equal(t, "50.0", merged.Get("stop_lat"))
	assert.Equal(t, "19.0", merged.Get("stop_lon"))
}

func TestReconcileGroupTimezoneMustAgree(t *testing.T) {
	a := stopRec("A", "S1", map[string]string{"stop_timezone": "Europe/Warsaw"})
	b := stopRec("B", "S2", map[string]string{"stop_timezone": "Europe/Prague"})

	_, err := reconcileGroup(KindStops, []*Record{a, b}, 0.003)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "stop_timezone", conflict.Field)
}

func TestReconcileGroupTimezoneFillsGap(t *testing.T) {
	a := stopRec("A", "S1", map[string]string{})
	b := stopRec("B", "S2", map[string]string{"stop_timezone": "Europe/Warsaw"})

	merged, err := reconcileGroup(KindStops, []*Record{a, b}, 0.003)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Warsaw", merged.Get("stop_timezone"))
}

func TestReconcileGroupKeepsCanonicalReferences(t *testing.T) {
	// parent_station is a reference: borrowing B's value would leave a
	// foreign id that doesn't resolve in A's namespace.
	a := stopRec("A", "S1", map[string]string{})
	b := stopRec("B", "S2", map[string]string{"parent_station": "P9"})

	merged, err := reconcileGroup(KindStops, []*Record{a, b}, 0.003)
	require.NoError(t, err)
	assert.Equal(t, "", merged.Get("parent_station"))
}

func TestReconcileGroupAgencies(t *testing.T) {
	a := &Record{Key: "1", Feeds: []string{"A"}, Fields: map[string]string{
		"agency_id": "1", "agency_name": "Metro A", "agency_timezone": "Europe/Warsaw",
	}}
	b := &Record{Key: "1", Feeds: []string{"B"}, Fields: map[string]string{
		"agency_id": "1", "agency_name": "Metro B", "agency_timezone": "Europe/Warsaw",
		"agency_phone": "+48 123 456 789",
	}}

	merged, err := reconcileGroup(KindAgency, []*Record{a, b}, 0.003)
	require.NoError(t, err)
	assert.Equal(t, "Metro A", merged.Get("agency_name"))
	assert.Equal(t, "+48 123 456 789", merged.Get("agency_phone"))
}
