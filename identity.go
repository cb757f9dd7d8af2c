package gtfsmerge

import (
	"fmt"
	"sort"
	"strings"
)

// entityRef is a feed-qualified original identifier.
type entityRef struct {
	feed string
	id   string
}

// mergeGroups is the identity resolver's output: per id space, the
// sets of records that denote the same real-world entity. Groups are
// pairwise disjoint by construction (union-find).
type mergeGroups struct {
	canon   map[string]map[entityRef]entityRef
	members map[string]map[entityRef][]entityRef
}

func newMergeGroups() *mergeGroups {
	return &mergeGroups{
		canon:   make(map[string]map[entityRef]entityRef),
		members: make(map[string]map[entityRef][]entityRef),
	}
}

// canonicalFor returns the canonical member of the group ref belongs
// to. ok is false when ref is not part of any merge group.
func (g *mergeGroups) canonicalFor(space string, ref entityRef) (entityRef, bool) {
	canon, ok := g.canon[space][ref]
	return canon, ok
}

func (g *mergeGroups) add(space string, members []entityRef) {
	if g.canon[space] == nil {
		g.canon[space] = make(map[entityRef]entityRef)
		g.members[space] = make(map[entityRef][]entityRef)
	}
	canon := members[0]
	for _, m := range members {
		g.canon[space][m] = canon
	}
	g.members[space][canon] = members
}

type unionFind struct {
	parent map[entityRef]entityRef
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[entityRef]entityRef)}
}

func (u *unionFind) find(x entityRef) entityRef {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b entityRef) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) sets() map[entityRef][]entityRef {
	out := make(map[entityRef][]entityRef)
	for x := range u.parent {
		root := u.find(x)
		out[root] = append(out[root], x)
	}
	return out
}

// mergeableSpaces are the only spaces where cross-feed identity
// exists. Routes, trips, calendars and shapes are feed-local: their
// identity is operator-specific and cross-feed equivalence has no
// reliable signal.
var mergeableSpaces = []string{spaceStop, spaceAgency}

func kindFor(space string) string {
	switch space {
	case spaceStop:
		return KindStops
	case spaceAgency:
		return KindAgency
	}
	panic("gtfsmerge: no mergeable kind for space " + space)
}

// resolveIdentity groups records that denote the same real-world
// entity. Stops merge via the configured correspondence table, plus
// exact normalized stop_code matches when enabled; agencies merge via
// the alias table only. Grouping is the transitive closure over the
// pairwise links, so it is order-independent; a closure that pulls two
// records of one feed into a single group is a configuration error.
func resolveIdentity(feeds []*Feed, cfg *Config) (*mergeGroups, error) {
	byID := make(map[string]*Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}

	finders := map[string]*unionFind{
		spaceStop:   newUnionFind(),
		spaceAgency: newUnionFind(),
	}

	link := func(space string, group []string) error {
		kind := kindFor(space)
		refs := make([]entityRef, 0, len(group))
		for _, raw := range group {
			feedID, id, err := splitRef(raw)
			if err != nil {
				return err
			}
			feed, ok := byID[feedID]
			if !ok {
				return fmt.Errorf("correspondence %q names unknown feed %q", raw, feedID)
			}
			if !feed.Records.Has(kind, id) {
				return fmt.Errorf("correspondence %q: feed %s never declares %s %q", raw, feedID, kind, id)
			}
			refs = append(refs, entityRef{feedID, id})
		}
		for _, ref := range refs[1:] {
			finders[space].union(refs[0], ref)
		}
		return nil
	}

	for _, group := range cfg.StopCorrespondences {
		if err := link(spaceStop, group); err != nil {
			return nil, err
		}
	}
	for _, group := range cfg.AgencyAliases {
		if err := link(spaceAgency, group); err != nil {
			return nil, err
		}
	}

	if cfg.MatchStopCodes {
		linkStopCodes(feeds, finders[spaceStop])
	}

	ranks := feedRanks(cfg, feeds)
	groups := newMergeGroups()
	for _, space := range mergeableSpaces {
		for _, members := range finders[space].sets() {
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				a, b := members[i], members[j]
				if ranks[a.feed] != ranks[b.feed] {
					return ranks[a.feed] < ranks[b.feed]
				}
				if a.feed != b.feed {
					return a.feed < b.feed
				}
				return a.id < b.id
			})
			perFeed := make(map[string]bool, len(members))
			for _, m := range members {
				if perFeed[m.feed] {
					keys := make([]string, len(members))
					for i, mm := range members {
						keys[i] = namespacedID(mm.feed, mm.id)
					}
					return nil, &AmbiguousMatchError{Kind: kindFor(space), Keys: keys}
				}
				perFeed[m.feed] = true
			}
			groups.add(space, members)
		}
	}
	return groups, nil
}

// linkStopCodes unions stops sharing a normalized stop_code, provided
// the code appears in more than one feed. Single-feed buckets carry no
// cross-feed signal and are left alone.
func linkStopCodes(feeds []*Feed, uf *unionFind) {
	buckets := make(map[string][]entityRef)
	for _, feed := range feeds {
		_ = feed.Records.Each(KindStops, func(rec *Record) error {
			code := normalizeCode(rec.Get("stop_code"))
			if code == "" {
				return nil
			}
			buckets[code] = append(buckets[code], entityRef{feed.ID, rec.Key})
			return nil
		})
	}
	codes := make([]string, 0, len(buckets))
	for code := range buckets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		refs := buckets[code]
		crossFeed := false
		for _, r := range refs[1:] {
			if r.feed != refs[0].feed {
				crossFeed = true
				break
			}
		}
		if !crossFeed {
			continue
		}
		for _, r := range refs[1:] {
			uf.union(refs[0], r)
		}
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// feedRanks orders feeds by the configured preference; feeds not
// listed rank after all listed ones, in ingestion order.
func feedRanks(cfg *Config, feeds []*Feed) map[string]int {
	ranks := make(map[string]int, len(feeds))
	for i, id := range cfg.PreferFeedOrder {
		ranks[id] = i
	}
	next := len(cfg.PreferFeedOrder)
	for _, f := range feeds {
		if _, ok := ranks[f.ID]; !ok {
			ranks[f.ID] = next
			next++
		}
	}
	return ranks
}
