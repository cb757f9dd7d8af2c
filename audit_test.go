package gtfsmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putGraphRec(t *testing.T, s *Store, kind string, fields map[string]string) {
	t.Helper()
	rec := &Record{Fields: fields}
	ks := mergeSchema[kind]
	if len(ks.PrimaryKey) > 0 {
		rec.Key = compositeKey(rec, ks.PrimaryKey)
	}
	require.NoError(t, s.Put(kind, rec))
}

func TestAuditDanglingEdge(t *testing.T) {
	s := NewStore()
	putGraphRec(t, s, KindRoutes, map[string]string{"route_id": "A:R1"})
	putGraphRec(t, s, KindCalendar, map[string]string{"service_id": "A:C1", "monday": "1"})
	putGraphRec(t, s, KindTrips, map[string]string{
		"trip_id": "A:T1", "route_id": "A:R1", "service_id": "A:C9",
	})
	putGraphRec(t, s, KindStopTimes, map[string]string{
		"trip_id": "A:T1", "stop_id": "A:S1", "stop_sequence": "1",
	})
	putGraphRec(t, s, KindStops, map[string]string{"stop_id": "A:S1"})

	violations := Audit(&OutputGraph{Records: s})
	require.True(t, HasFatal(violations))

	found := false
	for _, v := range violations {
		if v.Check == "dangling-edge" {
			found = true
			assert.Equal(t, SeverityError, v.Severity)
			assert.Equal(t, KindTrips, v.Kind)
			assert.Equal(t, []string{"A:T1", "A:C9"}, v.Keys)
		}
	}
	assert.True(t, found, "expected a dangling-edge violation")
}

func TestAuditServiceSpaceSpansCalendarTables(t *testing.T) {
	// A trip's service_id is valid when only calendar_dates declares it.
	s := NewStore()
	putGraphRec(t, s, KindRoutes, map[string]string{"route_id": "A:R1"})
	putGraphRec(t, s, KindCalendarDates, map[string]string{
		"service_id": "A:C1", "date": "20260601", "exception_type": "1",
	})
	putGraphRec(t, s, KindTrips, map[string]string{
		"trip_id": "A:T1", "route_id": "A:R1", "service_id": "A:C1",
	})
	putGraphRec(t, s, KindStops, map[string]string{"stop_id": "A:S1"})
	putGraphRec(t, s, KindStopTimes, map[string]string{
		"trip_id": "A:T1", "stop_id": "A:S1", "stop_sequence": "1",
	})

	violations := Audit(&OutputGraph{Records: s})
	assert.Empty(t, violations)
}

func TestAuditRemovalOnlyExceptionsAreDead(t *testing.T) {
	// A calendar with no active day whose only exceptions are removals
	// can never run.
	s := NewStore()
	putGraphRec(t, s, KindRoutes, map[string]string{"route_id": "A:R1"})
	putGraphRec(t, s, KindCalendar, map[string]string{"service_id": "A:C1"})
	putGraphRec(t, s, KindCalendarDates, map[string]string{
		"service_id": "A:C1", "date": "20260601", "exception_type": "2",
	})
	putGraphRec(t, s, KindTrips, map[string]string{
		"trip_id": "A:T1", "route_id": "A:R1", "service_id": "A:C1",
	})
	putGraphRec(t, s, KindStops, map[string]string{"stop_id": "A:S1"})
	putGraphRec(t, s, KindStopTimes, map[string]string{
		"trip_id": "A:T1", "stop_id": "A:S1", "stop_sequence": "1",
	})

	violations := Audit(&OutputGraph{Records: s})
	require.Len(t, violations, 1)
	assert.Equal(t, SeverityWarning, violations[0].Severity)
	assert.Equal(t, "dead-calendar", violations[0].Check)
	assert.False(t, HasFatal(violations))
}

func TestAuditParentStationReference(t *testing.T) {
	s := NewStore()
	putGraphRec(t, s, KindStops, map[string]string{
		"stop_id": "A:S1", "parent_station": "A:P9",
	})

	violations := Audit(&OutputGraph{Records: s})
	require.True(t, HasFatal(violations))
	assert.Equal(t, "dangling-edge", violations[0].Check)
	assert.Equal(t, KindStops, violations[0].Kind)
}
