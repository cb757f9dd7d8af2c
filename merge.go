package gtfsmerge

import (
	"fmt"
	"log/slog"
	"sort"
)

// OutputGraph is the merged dataset: the reconciled record tables plus
// the frozen identifier mapping used to produce them. Source feeds can
// be discarded once the graph exists.
type OutputGraph struct {
	Records *Store
	Mapping *Mapping
	// Feeds lists the contributing feed ids in preference order.
	Feeds []string
}

// Merge combines independently published feeds into one internally
// consistent dataset. Phases run strictly in sequence over a complete
// view of all feeds: identity resolution, namespacing, conflict
// reconciliation, reference rewriting, and a final integrity audit.
//
// On fatal audit violations the collected violations are returned
// together with ErrMergeInvalid and no graph; warnings are returned
// alongside a valid graph. Any earlier error aborts the merge
// immediately — partial output is never produced.
func Merge(feeds []*Feed, cfg *Config) (*OutputGraph, []Violation, error) {
	if len(feeds) == 0 {
		return nil, nil, fmt.Errorf("no feeds to merge")
	}
	seen := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		if f.ID == "" {
			return nil, nil, fmt.Errorf("feed with empty id")
		}
		if seen[f.ID] {
			return nil, nil, fmt.Errorf("feed id %q used twice", f.ID)
		}
		seen[f.ID] = true
	}

	slog.Info(fmt.Sprintf("Merging %d feed(s)", len(feeds)))

	ordered := orderByPreference(feeds, cfg)

	groups, err := resolveIdentity(ordered, cfg)
	if err != nil {
		return nil, nil, err
	}

	mapping, err := buildMapping(ordered, groups)
	if err != nil {
		return nil, nil, err
	}

	reconciled, err := reconcileAll(groups, ordered, cfg)
	if err != nil {
		return nil, nil, err
	}

	mapping.freeze()

	rw := &rewriter{mapping: mapping, groups: groups, reconciled: reconciled}
	out, err := rw.run(ordered)
	if err != nil {
		return nil, nil, err
	}

	graph := &OutputGraph{Records: out, Mapping: mapping}
	for _, f := range ordered {
		graph.Feeds = append(graph.Feeds, f.ID)
	}

	violations := Audit(graph)
	if HasFatal(violations) {
		return nil, violations, ErrMergeInvalid
	}

	for _, kind := range kindOrder {
		if n := out.Len(kind); n > 0 {
			slog.Info(fmt.Sprintf("Merged %d %s row(s)", n, kind))
		}
	}
	return graph, violations, nil
}

// orderByPreference sorts feeds by the configured preference, keeping
// ingestion order among feeds the configuration does not mention. The
// sort is stable so equal ranks cannot occur (ranks are unique).
func orderByPreference(feeds []*Feed, cfg *Config) []*Feed {
	ranks := feedRanks(cfg, feeds)
	ordered := make([]*Feed, len(feeds))
	copy(ordered, feeds)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ranks[ordered[i].ID] < ranks[ordered[j].ID]
	})
	return ordered
}
