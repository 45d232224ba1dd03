package repository

import "github.com/iliyamo/tour-booking/internal/model"

var BookingSchema = Schema[model.Booking]{
	Table: "bookings",
	Meta:  func(b *model.Booking) *model.Meta { return &b.Meta },
	Fields: append([]Field[model.Booking]{
		{Name: "tour", Column: "tour_id", Kind: KindInt, Get: func(b *model.Booking) any { return int64(b.Tour) }},
		{Name: "user", Column: "user_id", Kind: KindInt, Get: func(b *model.Booking) any { return int64(b.User) }},
		{Name: "price", Column: "price", Kind: KindDecimal, Get: func(b *model.Booking) any { return b.Price }},
		{Name: "paid", Column: "paid", Kind: KindBool, Get: func(b *model.Booking) any { return b.Paid }},
	}, metaFields(func(b *model.Booking) *model.Meta { return &b.Meta })...),
	Scan: func(scan func(dest ...any) error) (model.Booking, error) {
		var b model.Booking
		err := scan(&b.ID, &b.Tour, &b.User, &b.Price, &b.Paid, &b.CreatedAt, &b.Version)
		return b, err
	},
}
