package gtfsmerge

import "strings"

// Record is one row of an entity kind. Fields holds the raw column
// values; empty string means absent. Feeds is the provenance: the feed
// the row came from, plus every feed folded into it by a merge.
type Record struct {
	Key    string
	Fields map[string]string
	Feeds  []string
}

// Get returns the value of a field, or "" if the record doesn't have it.
func (r *Record) Get(field string) string {
	return r.Fields[field]
}

// Feed returns the originating feed id.
func (r *Record) Feed() string {
	if len(r.Feeds) == 0 {
		return ""
	}
	return r.Feeds[0]
}

func (r *Record) clone() *Record {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	feeds := make([]string, len(r.Feeds))
	copy(feeds, r.Feeds)
	return &Record{Key: r.Key, Fields: fields, Feeds: feeds}
}

// compositeKey joins the primary key columns of a record. Single-column
// keys come out unchanged.
func compositeKey(rec *Record, pk []string) string {
	if len(pk) == 1 {
		return rec.Get(pk[0])
	}
	parts := make([]string, len(pk))
	for i, col := range pk {
		parts[i] = rec.Get(col)
	}
	return strings.Join(parts, ",")
}

// Store holds keyed record tables per entity kind, preserving
// insertion order so two runs on identical input produce identical
// output.
type Store struct {
	tables map[string]*recordTable
}

type recordTable struct {
	order []string
	byKey map[string]*Record
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*recordTable)}
}

func (s *Store) table(kind string) *recordTable {
	t, ok := s.tables[kind]
	if !ok {
		t = &recordTable{byKey: make(map[string]*Record)}
		s.tables[kind] = t
	}
	return t
}

// Put stores rec under (kind, rec.Key). Storing a key twice is a
// DuplicateKeyError: within one feed it means the feed is malformed.
func (s *Store) Put(kind string, rec *Record) error {
	t := s.table(kind)
	if _, exists := t.byKey[rec.Key]; exists {
		return &DuplicateKeyError{Feed: rec.Feed(), Kind: kind, Key: rec.Key}
	}
	t.byKey[rec.Key] = rec
	t.order = append(t.order, rec.Key)
	return nil
}

// Get returns the record stored under (kind, key).
func (s *Store) Get(kind, key string) (*Record, error) {
	if t, ok := s.tables[kind]; ok {
		if rec, ok := t.byKey[key]; ok {
			return rec, nil
		}
	}
	return nil, &NotFoundError{Kind: kind, Key: key}
}

// Has reports whether a record is stored under (kind, key).
func (s *Store) Has(kind, key string) bool {
	t, ok := s.tables[kind]
	if !ok {
		return false
	}
	_, ok = t.byKey[key]
	return ok
}

// Len returns the number of records of a kind.
func (s *Store) Len(kind string) int {
	if t, ok := s.tables[kind]; ok {
		return len(t.order)
	}
	return 0
}

// Each calls fn for every record of a kind in insertion order. The
// iteration is restartable; a non-nil error from fn stops it and is
// returned.
func (s *Store) Each(kind string, fn func(*Record) error) error {
	t, ok := s.tables[kind]
	if !ok {
		return nil
	}
	for _, key := range t.order {
		if err := fn(t.byKey[key]); err != nil {
			return err
		}
	}
	return nil
}

// Feed is one source dataset: a stable short operator code plus its
// record tables. Immutable after ingestion.
type Feed struct {
	ID      string
	Records *Store
}
