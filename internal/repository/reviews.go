package repository

import "github.com/iliyamo/tour-booking/internal/model"

var ReviewSchema = Schema[model.Review]{
	Table:  "reviews",
	Unique: [][]string{{"tour", "user"}},
	Meta:   func(r *model.Review) *model.Meta { return &r.Meta },
	Fields: append([]Field[model.Review]{
		{Name: "review", Column: "review", Get: func(r *model.Review) any { return r.Review }},
		{Name: "rating", Column: "rating", Kind: KindInt, Get: func(r *model.Review) any { return int64(r.Rating) }},
		{Name: "tour", Column: "tour_id", Kind: KindInt, Get: func(r *model.Review) any { return int64(r.Tour) }},
		{Name: "user", Column: "user_id", Kind: KindInt, Get: func(r *model.Review) any { return int64(r.User) }},
	}, metaFields(func(r *model.Review) *model.Meta { return &r.Meta })...),
	Scan: func(scan func(dest ...any) error) (model.Review, error) {
		var r model.Review
		err := scan(&r.ID, &r.Review, &r.Rating, &r.Tour, &r.User, &r.CreatedAt, &r.Version)
		return r, err
	},
}
