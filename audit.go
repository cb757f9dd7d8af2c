package gtfsmerge

import (
	"context"
	"fmt"
	"log/slog"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one integrity problem found in the merged output.
type Violation struct {
	Severity Severity
	Check    string
	Kind     string
	Keys     []string
	Message  string
}

// Audit verifies the merged output graph: unique primary keys, no
// dangling edges, no orphaned trips or stop_times, and no trip bound
// to a calendar that can never run. Violations are collected, not
// short-circuited, so one run surfaces every problem.
func Audit(graph *OutputGraph) []Violation {
	a := &auditor{graph: graph}

	slog.Info("Auditing merged output")

	a.checkUniqueKeys()
	a.checkReferences()
	a.checkTripStopTimes()
	a.checkDeadCalendars()

	return a.violations
}

// HasFatal reports whether any collected violation is fatal.
func HasFatal(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

type auditor struct {
	graph      *OutputGraph
	violations []Violation
}

func (a *auditor) append(severity Severity, check, kind string, keys []string, msg string, args ...any) {
	v := Violation{
		Severity: severity,
		Check:    check,
		Kind:     kind,
		Keys:     keys,
		Message:  fmt.Sprintf(msg, args...),
	}
	level := slog.LevelWarn
	if severity == SeverityError {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, v.Message)
	a.violations = append(a.violations, v)
}

func (a *auditor) checkUniqueKeys() {
	for _, kind := range kindOrder {
		seen := make(map[string]bool, a.graph.Records.Len(kind))
		_ = a.graph.Records.Each(kind, func(rec *Record) error {
			if seen[rec.Key] {
				a.append(SeverityError, "unique-keys", kind, []string{rec.Key},
					"duplicate %s key %s in merged output", kind, rec.Key)
			}
			seen[rec.Key] = true
			return nil
		})
	}
}

// declaredIDs indexes, per space, every identifier the output graph
// declares.
func (a *auditor) declaredIDs() map[string]map[string]bool {
	ids := make(map[string]map[string]bool, len(allSpaces))
	for _, space := range allSpaces {
		ids[space] = make(map[string]bool)
	}
	for _, kind := range kindOrder {
		ks := mergeSchema[kind]
		if ks.IDField == "" {
			continue
		}
		_ = a.graph.Records.Each(kind, func(rec *Record) error {
			if id := rec.Get(ks.IDField); id != "" {
				ids[ks.IDSpace][id] = true
			}
			return nil
		})
	}
	return ids
}

func (a *auditor) checkReferences() {
	ids := a.declaredIDs()
	for _, kind := range kindOrder {
		ks := mergeSchema[kind]
		if len(ks.ForeignKeys) == 0 {
			continue
		}
		_ = a.graph.Records.Each(kind, func(rec *Record) error {
			for _, field := range ks.Columns {
				space, isRef := ks.ForeignKeys[field]
				if !isRef {
					continue
				}
				target := rec.Get(field)
				if target == "" || ids[space][target] {
					continue
				}
				a.append(SeverityError, "dangling-edge", kind, []string{rec.Key, target},
					"%s %s: %s references %s %s, which does not exist",
					kind, rec.Key, field, space, target)
			}
			return nil
		})
	}
}

func (a *auditor) checkTripStopTimes() {
	counts := make(map[string]int)
	_ = a.graph.Records.Each(KindStopTimes, func(rec *Record) error {
		counts[rec.Get("trip_id")]++
		return nil
	})
	_ = a.graph.Records.Each(KindTrips, func(rec *Record) error {
		if counts[rec.Get("trip_id")] == 0 {
			a.append(SeverityError, "orphan-trip", KindTrips, []string{rec.Key},
				"trip %s has no stop_times", rec.Key)
		}
		return nil
	})
}

var weekdayColumns = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// checkDeadCalendars warns about trips bound to a calendar with no
// active weekday and no added exception date. Such trips can never
// run; some source feeds publish them deliberately, so this is not
// fatal.
func (a *auditor) checkDeadCalendars() {
	declared := make(map[string]bool)
	active := make(map[string]bool)
	_ = a.graph.Records.Each(KindCalendar, func(rec *Record) error {
		id := rec.Get("service_id")
		declared[id] = true
		for _, day := range weekdayColumns {
			if rec.Get(day) == "1" {
				active[id] = true
				break
			}
		}
		return nil
	})
	_ = a.graph.Records.Each(KindCalendarDates, func(rec *Record) error {
		declared[rec.Get("service_id")] = true
		if rec.Get("exception_type") == "1" {
			active[rec.Get("service_id")] = true
		}
		return nil
	})

	reported := make(map[string]bool)
	_ = a.graph.Records.Each(KindTrips, func(rec *Record) error {
		service := rec.Get("service_id")
		if service == "" || reported[service] {
			return nil
		}
		if declared[service] && !active[service] {
			reported[service] = true
			a.append(SeverityWarning, "dead-calendar", KindCalendar, []string{service, rec.Key},
				"calendar %s has no active day and no added dates, trip %s can never run",
				service, rec.Key)
		}
		return nil
	})
}
