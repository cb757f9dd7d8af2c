package gtfsmerge

// rewriter walks every surviving record and replaces every identifier
// and foreign-key value with its output key from the frozen mapping.
// No field is ever passed through unrewritten: a lookup miss is fatal.
type rewriter struct {
	mapping    *Mapping
	groups     *mergeGroups
	reconciled map[string]map[entityRef]*Record
	out        *Store
}

// run assembles the output store. Feeds arrive in preference order, so
// insertion order (and with it output order) is deterministic.
func (rw *rewriter) run(feeds []*Feed) (*Store, error) {
	rw.out = NewStore()
	for _, kind := range kindOrder {
		ks := mergeSchema[kind]
		if ks.Merge == mergeSingleton {
			if err := rw.keepPreferredSingleton(kind, ks, feeds); err != nil {
				return nil, err
			}
			continue
		}
		for _, feed := range feeds {
			err := feed.Records.Each(kind, func(rec *Record) error {
				return rw.emit(kind, ks, feed.ID, rec)
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return rw.out, nil
}

// keepPreferredSingleton emits the rows of the first feed, in
// preference order, that has any. Used for feed_info, where exactly
// one publisher block survives the merge.
func (rw *rewriter) keepPreferredSingleton(kind string, ks kindSchema, feeds []*Feed) error {
	for _, feed := range feeds {
		if feed.Records.Len(kind) == 0 {
			continue
		}
		return feed.Records.Each(kind, func(rec *Record) error {
			out := rec.clone()
			out.Key = namespacedID(feed.ID, rec.Key)
			return rw.out.Put(kind, out)
		})
	}
	return nil
}

func (rw *rewriter) emit(kind string, ks kindSchema, feed string, rec *Record) error {
	src := rec
	if ks.IDField != "" {
		ref := entityRef{feed, rec.Get(ks.IDField)}
		if canon, ok := rw.groups.canonicalFor(ks.IDSpace, ref); ok {
			if canon != ref {
				return nil // merged into another feed's record
			}
			src = rw.reconciled[ks.IDSpace][canon]
		}
	}

	out, err := rw.rewriteRecord(kind, ks, feed, src)
	if err != nil {
		return err
	}
	return rw.out.Put(kind, out)
}

func (rw *rewriter) rewriteRecord(kind string, ks kindSchema, feed string, rec *Record) (*Record, error) {
	out := rec.clone()

	if ks.IDField != "" {
		if id := rec.Get(ks.IDField); id != "" {
			mapped, ok := rw.mapping.Lookup(feed, ks.IDSpace, id)
			if !ok {
				// The mapping is total over declared identifiers, so a
				// miss here is a bug, not bad input.
				panic("gtfsmerge: declared id missing from frozen mapping: " + namespacedID(feed, id))
			}
			out.Fields[ks.IDField] = mapped
		}
	}

	for field, space := range ks.ForeignKeys {
		target := rec.Get(field)
		if target == "" {
			continue
		}
		mapped, ok := rw.mapping.Lookup(feed, space, target)
		if !ok {
			// Distinguish a reference into the wrong kind from a
			// reference to nothing.
			for _, other := range allSpaces {
				if other == space {
					continue
				}
				if _, ok := rw.mapping.Lookup(feed, other, target); ok {
					return nil, &TypeMismatchError{
						Feed: feed, Kind: kind, Key: rec.Key, Field: field,
						Target: target, WantSpace: space, GotSpace: other,
					}
				}
			}
			return nil, &DanglingReferenceError{
				Feed: feed, Kind: kind, Key: rec.Key, Field: field, Target: target,
			}
		}
		out.Fields[field] = mapped
	}

	out.Key = outputKey(ks, feed, out)
	return out, nil
}

// outputKey derives the output store key from the already-rewritten
// fields. For composite keys the namespaced id columns make the joined
// key collision-free across feeds.
func outputKey(ks kindSchema, feed string, rec *Record) string {
	if len(ks.PrimaryKey) == 0 {
		return namespacedID(feed, rec.Key)
	}
	return compositeKey(rec, ks.PrimaryKey)
}
