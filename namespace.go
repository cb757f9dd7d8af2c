package gtfsmerge

type mappingKey struct {
	feed  string
	space string
	id    string
}

// Mapping records the output identifier for every identifier declared
// by every feed. It is total before rewriting starts and frozen
// thereafter; assigning to a frozen mapping is a programming error.
type Mapping struct {
	out    map[mappingKey]string
	frozen bool
}

func newMapping() *Mapping {
	return &Mapping{out: make(map[mappingKey]string)}
}

// Lookup returns the output identifier for an original (feed, space,
// id) triple.
func (m *Mapping) Lookup(feed, space, id string) (string, bool) {
	out, ok := m.out[mappingKey{feed, space, id}]
	return out, ok
}

func (m *Mapping) assign(feed, space, id, out string) {
	if m.frozen {
		panic("gtfsmerge: assign to frozen identifier mapping")
	}
	k := mappingKey{feed, space, id}
	if prev, ok := m.out[k]; ok {
		if prev != out {
			panic("gtfsmerge: identifier " + feed + ":" + id + " assigned twice with different output keys")
		}
		return
	}
	m.out[k] = out
}

func (m *Mapping) freeze() {
	m.frozen = true
}

// namespacedID composes the collision-free output identifier. Feed ids
// are unique and original ids are unique within a feed, so no two
// feeds can produce the same output id.
func namespacedID(feed, id string) string {
	return feed + ":" + id
}

// buildMapping assigns an output identifier to every identifier every
// feed declares. Members of a merge group all map to the group's
// canonical id; everything else is namespaced under its own feed.
func buildMapping(feeds []*Feed, groups *mergeGroups) (*Mapping, error) {
	m := newMapping()
	for _, feed := range feeds {
		for _, kind := range kindOrder {
			ks := mergeSchema[kind]
			if ks.IDField == "" {
				continue
			}
			err := feed.Records.Each(kind, func(rec *Record) error {
				id := rec.Get(ks.IDField)
				if id == "" {
					return nil
				}
				out := namespacedID(feed.ID, id)
				if canon, ok := groups.canonicalFor(ks.IDSpace, entityRef{feed.ID, id}); ok {
					out = namespacedID(canon.feed, canon.id)
				}
				m.assign(feed.ID, ks.IDSpace, id, out)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
