// Package store holds the license record collection backends.
//
// Every backend supports whole-collection Load and Save: a read returns every
// record, a write replaces every record, and nothing checks whether the
// collection changed in between. Two writers racing on different keys can
// therefore lose one update. Backends that can also implement VersionedStore
// offer UpdateIfUnchanged, a single-record write conditional on the record's
// version, which the authority uses in optimistic mode.
package store

import (
	"context"
	"sort"

	"vidgate/pkg/contracts/domain"
)

// Collection is the full set of license records.
type Collection struct {
	Records []domain.LicenseRecord `json:"record"`
}

// Find returns the index of the record whose normalized key matches key.
func (c *Collection) Find(key string) (int, bool) {
	want := domain.NormalizeKey(key)
	for i := range c.Records {
		if domain.NormalizeKey(c.Records[i].Key) == want {
			return i, true
		}
	}
	return -1, false
}

// Clone deep-copies the collection.
func (c Collection) Clone() Collection {
	out := Collection{Records: make([]domain.LicenseRecord, len(c.Records))}
	for i, rec := range c.Records {
		out.Records[i] = rec.Clone()
	}
	return out
}

// sortRecords orders records by normalized key so backends without an
// intrinsic order return a stable collection.
func sortRecords(records []domain.LicenseRecord) {
	sort.Slice(records, func(i, j int) bool {
		return domain.NormalizeKey(records[i].Key) < domain.NormalizeKey(records[j].Key)
	})
}

// Store reads and replaces the whole license collection.
type Store interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, c Collection) error
	Close() error
}

// VersionedStore adds a conditional single-record write.
type VersionedStore interface {
	Store

	// UpdateIfUnchanged replaces the record stored under key only if its
	// current version equals expectedVersion. It returns the new version, or
	// errors.ErrConflict when the stored version differs, or
	// errors.ErrInvalidLicense when no record exists under key.
	UpdateIfUnchanged(ctx context.Context, key string, expectedVersion uint64, rec domain.LicenseRecord) (uint64, error)
}
