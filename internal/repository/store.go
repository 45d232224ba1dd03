package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/tour-booking/internal/model"
)

// Store bundles the collections of every entity.
type Store struct {
	Users    Collection[model.User]
	Tours    Collection[model.Tour]
	Reviews  Collection[model.Review]
	Bookings Collection[model.Booking]
}

// NewSQLStore returns collections backed by db.
func NewSQLStore(db *sql.DB) *Store {
	return &Store{
		Users:    newSQLCollection(db, &UserSchema),
		Tours:    newSQLCollection(db, &TourSchema),
		Reviews:  newSQLCollection(db, &ReviewSchema),
		Bookings: newSQLCollection(db, &BookingSchema),
	}
}

// NewMemoryStore returns empty in-process collections.
func NewMemoryStore() *Store {
	return &Store{
		Users:    newMemoryCollection(&UserSchema),
		Tours:    newMemoryCollection(&TourSchema),
		Reviews:  newMemoryCollection(&ReviewSchema),
		Bookings: newMemoryCollection(&BookingSchema),
	}
}

// metaFields are the trailing columns every table shares.
func metaFields[T any](meta func(*T) *model.Meta) []Field[T] {
	return []Field[T]{
		{Name: "createdAt", Column: "created_at", Kind: KindTime, Get: func(d *T) any { return meta(d).CreatedAt }},
		{Name: "version", Column: "version", Kind: KindInt, Get: func(d *T) any { return int64(meta(d).Version) }},
	}
}

func jsonValue(v any) any {
	b, _ := json.Marshal(v)
	return b
}

func idList(ids []uint64) any {
	if ids == nil {
		ids = []uint64{}
	}
	return jsonValue(ids)
}

// decodeJSON tolerates NULL columns.
func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
