package repository

import (
	"github.com/iliyamo/tour-booking/internal/model"
)

var TourSchema = Schema[model.Tour]{
	Table:  "tours",
	Unique: [][]string{{"name"}},
	Meta:   func(t *model.Tour) *model.Meta { return &t.Meta },
	Fields: append([]Field[model.Tour]{
		{Name: "name", Column: "name", Get: func(t *model.Tour) any { return t.Name }},
		{Name: "slug", Column: "slug", Get: func(t *model.Tour) any { return t.Slug }},
		{Name: "duration", Column: "duration", Kind: KindInt, Get: func(t *model.Tour) any { return int64(t.Duration) }},
		{Name: "maxGroupSize", Column: "max_group_size", Kind: KindInt, Get: func(t *model.Tour) any { return int64(t.MaxGroupSize) }},
		{Name: "difficulty", Column: "difficulty", Get: func(t *model.Tour) any { return t.Difficulty }},
		{Name: "ratingsAverage", Column: "ratings_average", Kind: KindFloat, Get: func(t *model.Tour) any { return t.RatingsAverage }},
		{Name: "ratingsQuantity", Column: "ratings_quantity", Kind: KindInt, Get: func(t *model.Tour) any { return int64(t.RatingsQuantity) }},
		{Name: "price", Column: "price", Kind: KindFloat, Get: func(t *model.Tour) any { return t.Price }},
		{Name: "priceDiscount", Column: "price_discount", Kind: KindFloat, Get: func(t *model.Tour) any { return t.PriceDiscount }},
		{Name: "summary", Column: "summary", Get: func(t *model.Tour) any { return t.Summary }},
		{Name: "description", Column: "description", Get: func(t *model.Tour) any { return t.Description }},
		{Name: "imageCover", Column: "image_cover", Get: func(t *model.Tour) any { return t.ImageCover }},
		{Name: "images", Column: "images", Kind: KindJSON, Get: func(t *model.Tour) any { return jsonValue(nonNil(t.Images)) }},
		{Name: "startDates", Column: "start_dates", Kind: KindJSON, Get: func(t *model.Tour) any { return jsonValue(nonNil(t.StartDates)) }},
		{Name: "secretTour", Column: "secret_tour", Kind: KindBool, Get: func(t *model.Tour) any { return t.SecretTour }},
		{Name: "startLocation", Column: "start_location", Kind: KindJSON, Get: func(t *model.Tour) any {
			if t.StartLocation == nil {
				return nil
			}
			return jsonValue(t.StartLocation)
		}},
		{Name: "locations", Column: "locations", Kind: KindJSON, Get: func(t *model.Tour) any { return jsonValue(nonNil(t.Locations)) }},
		{Name: "guides", Column: "guides", Kind: KindJSON, Get: func(t *model.Tour) any { return idList(t.Guides) }},
	}, metaFields(func(t *model.Tour) *model.Meta { return &t.Meta })...),
	Scan: func(scan func(dest ...any) error) (model.Tour, error) {
		var t model.Tour
		var images, dates, start, locations, guides []byte
		if err := scan(&t.ID, &t.Name, &t.Slug, &t.Duration, &t.MaxGroupSize, &t.Difficulty,
			&t.RatingsAverage, &t.RatingsQuantity, &t.Price, &t.PriceDiscount, &t.Summary,
			&t.Description, &t.ImageCover, &images, &dates, &t.SecretTour, &start, &locations,
			&guides, &t.CreatedAt, &t.Version); err != nil {
			return t, err
		}
		for _, c := range []struct {
			raw []byte
			v   any
		}{{images, &t.Images}, {dates, &t.StartDates}, {start, &t.StartLocation}, {locations, &t.Locations}, {guides, &t.Guides}} {
			if err := decodeJSON(c.raw, c.v); err != nil {
				return t, err
			}
		}
		return t, nil
	},
}

func nonNil[E any](s []E) []E {
	if s == nil {
		return []E{}
	}
	return s
}
