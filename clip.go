package gtfsmerge

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
)

// Clip restricts the merged graph to stops inside the given GeoJSON
// feature, then prunes everything that only served the removed stops:
// trips with no remaining stop inside, their stop_times, and routes,
// agencies, calendars, shapes and fares nothing references anymore.
// The clipped graph is re-audited before it replaces the original.
func Clip(graph *OutputGraph, clipFeature string) error {
	feature, err := geojson.Parse(clipFeature, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return fmt.Errorf("parse clip feature: %w", err)
	}

	slog.Info(fmt.Sprintf("Clipping merged graph (clipFeature has %d points)", feature.NumPoints()))

	stopsInside := make(map[string]bool)
	totalStopCount := 0
	err = graph.Records.Each(KindStops, func(rec *Record) error {
		totalStopCount++
		lat, err := strconv.ParseFloat(rec.Get("stop_lat"), 64)
		if err != nil {
			slog.Error("Failed to parse stop_lat", "stop_id", rec.Key)
			return nil
		}
		lng, err := strconv.ParseFloat(rec.Get("stop_lon"), 64)
		if err != nil {
			slog.Error("Failed to parse stop_lon", "stop_id", rec.Key)
			return nil
		}
		point := geojson.NewPoint(geometry.Point{X: lng, Y: lat})
		if feature.Contains(point) {
			stopsInside[rec.Key] = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%d of %d stops are inside", len(stopsInside), totalStopCount))

	keepTrips := make(map[string]bool)
	_ = graph.Records.Each(KindStopTimes, func(rec *Record) error {
		if stopsInside[rec.Get("stop_id")] {
			keepTrips[rec.Get("trip_id")] = true
		}
		return nil
	})

	keepStops := make(map[string]bool)
	_ = graph.Records.Each(KindStopTimes, func(rec *Record) error {
		if keepTrips[rec.Get("trip_id")] {
			keepStops[rec.Get("stop_id")] = true
		}
		return nil
	})
	_ = graph.Records.Each(KindStops, func(rec *Record) error {
		if keepStops[rec.Get("stop_id")] && rec.Get("parent_station") != "" {
			keepStops[rec.Get("parent_station")] = true
		}
		return nil
	})

	keepRoutes := make(map[string]bool)
	keepServices := make(map[string]bool)
	keepShapes := make(map[string]bool)
	_ = graph.Records.Each(KindTrips, func(rec *Record) error {
		if !keepTrips[rec.Get("trip_id")] {
			return nil
		}
		keepRoutes[rec.Get("route_id")] = true
		keepServices[rec.Get("service_id")] = true
		if shape := rec.Get("shape_id"); shape != "" {
			keepShapes[shape] = true
		}
		return nil
	})

	keepAgencies := make(map[string]bool)
	_ = graph.Records.Each(KindRoutes, func(rec *Record) error {
		if keepRoutes[rec.Get("route_id")] && rec.Get("agency_id") != "" {
			keepAgencies[rec.Get("agency_id")] = true
		}
		return nil
	})

	keepFares := make(map[string]bool)
	_ = graph.Records.Each(KindFareRules, func(rec *Record) error {
		route := rec.Get("route_id")
		if route == "" || keepRoutes[route] {
			keepFares[rec.Get("fare_id")] = true
		}
		return nil
	})

	keep := func(kind string, rec *Record) bool {
		switch kind {
		case KindAgency:
			return keepAgencies[rec.Get("agency_id")]
		case KindStops:
			return keepStops[rec.Get("stop_id")]
		case KindRoutes:
			return keepRoutes[rec.Get("route_id")]
		case KindTrips:
			return keepTrips[rec.Get("trip_id")]
		case KindCalendar, KindCalendarDates:
			return keepServices[rec.Get("service_id")]
		case KindStopTimes:
			return keepTrips[rec.Get("trip_id")]
		case KindShapes:
			return keepShapes[rec.Get("shape_id")]
		case KindFareAttributes:
			if rec.Get("agency_id") != "" && !keepAgencies[rec.Get("agency_id")] {
				return false
			}
			return keepFares[rec.Get("fare_id")]
		case KindFareRules:
			route := rec.Get("route_id")
			return route == "" || keepRoutes[route]
		default:
			return true
		}
	}

	clipped := NewStore()
	for _, kind := range kindOrder {
		err := graph.Records.Each(kind, func(rec *Record) error {
			if !keep(kind, rec) {
				return nil
			}
			return clipped.Put(kind, rec)
		})
		if err != nil {
			return err
		}
	}
	graph.Records = clipped

	if violations := Audit(graph); HasFatal(violations) {
		return ErrMergeInvalid
	}
	return nil
}
