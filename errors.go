package gtfsmerge

import (
	"errors"
	"fmt"
)

// ErrMergeInvalid is returned when the integrity audit finds fatal
// violations in the merged output. The individual violations are
// returned alongside it.
var ErrMergeInvalid = errors.New("merged output is invalid")

// DuplicateKeyError signals a primary key declared twice within a
// single source feed. Source feeds are assumed internally consistent,
// so this aborts ingestion of that feed.
type DuplicateKeyError struct {
	Feed string
	Kind string
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s key %q in feed %s", e.Kind, e.Key, e.Feed)
}

// NotFoundError signals a lookup of a record that was never stored.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s record with key %q", e.Kind, e.Key)
}

// DanglingReferenceError signals a feed referencing an entity it never
// declared. The input feed is presumed malformed.
type DanglingReferenceError struct {
	Feed   string
	Kind   string
	Key    string
	Field  string
	Target string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s %q in feed %s: %s references %q, which feed %s never declares",
		e.Kind, e.Key, e.Feed, e.Field, e.Target, e.Feed)
}

// TypeMismatchError signals a reference whose target exists, but under
// a different entity kind than the field allows.
type TypeMismatchError struct {
	Feed      string
	Kind      string
	Key       string
	Field     string
	Target    string
	WantSpace string
	GotSpace  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s %q in feed %s: %s references %q, which is a %s id, not a %s id",
		e.Kind, e.Key, e.Feed, e.Field, e.Target, e.GotSpace, e.WantSpace)
}

// ConflictError signals two merged records disagreeing on an attribute
// that must be reconciled exactly or within tolerance. Both values are
// named so the offending rows can be located.
type ConflictError struct {
	Kind   string
	Field  string
	KeyA   string
	ValueA string
	KeyB   string
	ValueB string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting %s for merged %s: %s has %q, %s has %q",
		e.Field, e.Kind, e.KeyA, e.ValueA, e.KeyB, e.ValueB)
}

// AmbiguousMatchError signals a correspondence configuration whose
// transitive closure pulls two records of the same feed into one merge
// group. Such a configuration is an error, not something to resolve
// silently.
type AmbiguousMatchError struct {
	Kind string
	Keys []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("correspondence closure merges multiple %s records from one feed: %v", e.Kind, e.Keys)
}
