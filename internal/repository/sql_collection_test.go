package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
)

const reviewColumns = "`id`, `review`, `rating`, `tour_id`, `user_id`, `created_at`, `version`"

func newMockReviews(t *testing.T) (*sqlCollection[model.Review], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return newSQLCollection(db, &ReviewSchema), mock
}

func TestSQLCollection_Where(t *testing.T) {
	users := newSQLCollection(nil, &UserSchema)
	tests := []struct {
		name    string
		filters []query.Filter
		clause  string
		args    []any
	}{
		{"no filters", nil, "", nil},
		{"equality", []query.Filter{query.Where("email", query.OpEq, "jane@example.com")},
			" WHERE `email` = ?", []any{"jane@example.com"}},
		{"membership", []query.Filter{{Field: "role", Op: query.OpIn, Values: []string{"guide", "lead-guide"}}},
			" WHERE `role` IN (?,?)", []any{"guide", "lead-guide"}},
		{"not equal keeps nulls", []query.Filter{query.Where("role", query.OpNe, "admin"), query.Where("active", query.OpEq, "true")},
			" WHERE (`role` IS NULL OR `role` <> ?) AND `active` = ?", []any{"admin", true}},
		{"range on time", []query.Filter{{Field: "createdAt", Op: query.OpGte, Values: []string{"2025-03-01"}}},
			" WHERE `created_at` >= ?", []any{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args, err := users.where(tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.clause, clause)
			assert.Equal(t, tt.args, args)
		})
	}

	_, _, err := users.where([]query.Filter{{Field: "passwordHash", Op: query.OpEq, Values: []string{"x"}}})
	var fe *FieldError
	assert.ErrorAs(t, err, &fe)

	_, _, err = users.where([]query.Filter{query.Where("active", query.OpEq, "maybe")})
	var ce *CastError
	assert.ErrorAs(t, err, &ce)
}

func TestSQLCollection_Find(t *testing.T) {
	c, mock := newMockReviews(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT "+reviewColumns+" FROM `reviews` WHERE `tour_id` = ? ORDER BY `rating` DESC, `id` LIMIT 2 OFFSET 4").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "review", "rating", "tour_id", "user_id", "created_at", "version"}).
			AddRow(int64(9), "Loved it", int64(5), int64(7), int64(3), created, int64(1)))
	got, err := c.Find(ctx, query.Query{
		Filters: []query.Filter{query.Where("tour", query.OpEq, "7")},
		Sort:    []query.SortField{{Field: "rating", Desc: true}},
		Skip:    4,
		Take:    2,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Review{
		Meta:   model.Meta{ID: 9, CreatedAt: created, Version: 1},
		Review: "Loved it", Rating: 5, Tour: 7, User: 3,
	}, got[0])

	mock.ExpectQuery("SELECT " + reviewColumns + " FROM `reviews` ORDER BY `id` LIMIT 18446744073709551615 OFFSET 5").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	got, err = c.Find(ctx, query.Query{Skip: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	mock.ExpectQuery("SELECT " + reviewColumns + " FROM `reviews` ORDER BY `id` LIMIT 3 OFFSET 0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = c.Find(ctx, query.Query{Skip: -4, Take: 3})
	require.NoError(t, err)

	_, err = c.Find(ctx, query.Query{Sort: []query.SortField{{Field: "nope"}}})
	var fe *FieldError
	assert.ErrorAs(t, err, &fe)
}

func TestSQLCollection_Replace(t *testing.T) {
	c, mock := newMockReviews(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	update := "UPDATE `reviews` SET `review`=?, `rating`=?, `tour_id`=?, `user_id`=?, `created_at`=?, `version`=? WHERE `id`=? AND `version`=?"
	exists := "SELECT 1 FROM `reviews` WHERE `id`=?"
	doc := func() model.Review {
		return model.Review{Meta: model.Meta{ID: 9, CreatedAt: created, Version: 2}, Review: "Fine", Rating: 4, Tour: 7, User: 3}
	}

	r := doc()
	mock.ExpectExec(update).
		WithArgs("Fine", int64(4), int64(7), int64(3), created, int64(3), int64(9), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, c.Replace(ctx, &r))
	assert.Equal(t, 3, r.Version)

	r = doc()
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exists).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.ErrorIs(t, c.Replace(ctx, &r), ErrConflict)
	assert.Equal(t, 2, r.Version)

	r = doc()
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exists).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	assert.ErrorIs(t, c.Replace(ctx, &r), ErrNotFound)

	r = doc()
	mock.ExpectExec(update).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-3' for key 'reviews.tour_user'"})
	var de *DuplicateError
	require.ErrorAs(t, c.Replace(ctx, &r), &de)
	assert.Equal(t, "tour_user", de.Key)
	assert.Equal(t, 2, r.Version)
}

func TestSQLCollection_Delete(t *testing.T) {
	c, mock := newMockReviews(t)
	ctx := context.Background()
	del := "DELETE FROM `reviews` WHERE `id`=?"

	mock.ExpectExec(del).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, c.Delete(ctx, 9))

	mock.ExpectExec(del).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, c.Delete(ctx, 9), ErrNotFound)
}
