package gtfsmerge

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// exactFields must agree exactly across every member of a merge group.
// Silently picking one timezone would corrupt downstream schedules the
// same way picking one coordinate would corrupt geometry.
var exactFields = map[string]map[string]bool{
	KindStops:  {"stop_timezone": true},
	KindAgency: {"agency_timezone": true},
}

// reconcileAll produces one reconciled record per merge group, keyed
// by the group's canonical member.
func reconcileAll(groups *mergeGroups, feeds []*Feed, cfg *Config) (map[string]map[entityRef]*Record, error) {
	byID := make(map[string]*Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}
	out := make(map[string]map[entityRef]*Record)
	for _, space := range mergeableSpaces {
		kind := kindFor(space)
		out[space] = make(map[entityRef]*Record)
		for canon, members := range groups.members[space] {
			recs := make([]*Record, len(members))
			for i, m := range members {
				rec, err := byID[m.feed].Records.Get(kind, m.id)
				if err != nil {
					return nil, err
				}
				recs[i] = rec
			}
			merged, err := reconcileGroup(kind, recs, cfg.CoordToleranceDeg)
			if err != nil {
				return nil, err
			}
			out[space][canon] = merged
		}
	}
	return out, nil
}

// reconcileGroup collapses a merge group into a single record.
// Members arrive in feed-preference order. Identity fields must agree
// (exactly, or within tolerance for coordinates); descriptive fields
// take the first non-empty value.
func reconcileGroup(kind string, members []*Record, tolerance float64) (*Record, error) {
	ks := mergeSchema[kind]
	merged := members[0].clone()
	for _, m := range members[1:] {
		for _, feed := range m.Feeds {
			merged.Feeds = appendUnique(merged.Feeds, feed)
		}
	}

	for _, col := range groupColumns(ks, members) {
		if col == ks.IDField {
			continue // rewritten to the canonical output key later
		}
		if _, isRef := ks.ForeignKeys[col]; isRef {
			continue // references stay with the canonical member's namespace
		}
		if kind == KindStops && (col == "stop_lat" || col == "stop_lon") {
			continue // reconciled as a pair below
		}
		if exactFields[kind][col] {
			if err := reconcileExact(kind, col, members); err != nil {
				return nil, err
			}
		}
		merged.Fields[col] = firstNonEmpty(col, members)
	}

	if kind == KindStops {
		if err := reconcilePosition(members, tolerance, merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func reconcileExact(kind, col string, members []*Record) error {
	first := -1
	for i, m := range members {
		v := m.Get(col)
		if v == "" {
			continue
		}
		if first == -1 {
			first = i
			continue
		}
		if v != members[first].Get(col) {
			return &ConflictError{
				Kind:   kind,
				Field:  col,
				KeyA:   namespacedID(members[first].Feed(), members[first].Key),
				ValueA: members[first].Get(col),
				KeyB:   namespacedID(m.Feed(), m.Key),
				ValueB: v,
			}
		}
	}
	return nil
}

// reconcilePosition keeps the most preferred member's coordinates and
// requires every other member to lie within tolerance of them.
func reconcilePosition(members []*Record, tolerance float64, merged *Record) error {
	base := -1
	var baseLat, baseLon float64
	for i, m := range members {
		latS, lonS := m.Get("stop_lat"), m.Get("stop_lon")
		if latS == "" || lonS == "" {
			continue
		}
		lat, lon, err := parseCoords(latS, lonS)
		if err != nil {
			return fmt.Errorf("stop %s: %w", namespacedID(m.Feed(), m.Key), err)
		}
		if base == -1 {
			base, baseLat, baseLon = i, lat, lon
			continue
		}
		if math.Hypot(lat-baseLat, lon-baseLon) > tolerance {
			return &ConflictError{
				Kind:   KindStops,
				Field:  "stop_lat,stop_lon",
				KeyA:   namespacedID(members[base].Feed(), members[base].Key),
				ValueA: fmt.Sprintf("%s,%s", members[base].Get("stop_lat"), members[base].Get("stop_lon")),
				KeyB:   namespacedID(m.Feed(), m.Key),
				ValueB: fmt.Sprintf("%s,%s", latS, lonS),
			}
		}
	}
	if base >= 0 {
		merged.Fields["stop_lat"] = members[base].Get("stop_lat")
		merged.Fields["stop_lon"] = members[base].Get("stop_lon")
	}
	return nil
}

func parseCoords(latS, lonS string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(latS, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad stop_lat %q", latS)
	}
	lon, err = strconv.ParseFloat(lonS, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad stop_lon %q", lonS)
	}
	return lat, lon, nil
}

// groupColumns is the union of the schema columns and any extra fields
// the members carry, extras in sorted order for determinism.
func groupColumns(ks kindSchema, members []*Record) []string {
	seen := make(map[string]bool, len(ks.Columns))
	cols := make([]string, 0, len(ks.Columns))
	cols = append(cols, ks.Columns...)
	for _, c := range ks.Columns {
		seen[c] = true
	}
	var extras []string
	for _, m := range members {
		for c := range m.Fields {
			if !seen[c] {
				seen[c] = true
				extras = append(extras, c)
			}
		}
	}
	sort.Strings(extras)
	return append(cols, extras...)
}

func firstNonEmpty(col string, members []*Record) string {
	for _, m := range members {
		if v := m.Get(col); v != "" {
			return v
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
