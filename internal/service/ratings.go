package service

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// replaceAttempts bounds retries when a concurrent tour write wins the
// version race.
const replaceAttempts = 3

// Ratings keeps a tour's ratingsQuantity and ratingsAverage in step with
// its reviews.
type Ratings struct {
	reviews repository.Collection[model.Review]
	tours   repository.Collection[model.Tour]
}

func NewRatings(reviews repository.Collection[model.Review], tours repository.Collection[model.Tour]) *Ratings {
	return &Ratings{reviews: reviews, tours: tours}
}

// Recompute recalculates the aggregate of tourID from scratch.  A tour
// without reviews falls back to zero ratings and the default average.  A
// missing tour is not an error: the review may outlive it.
func (r *Ratings) Recompute(ctx context.Context, tourID uint64) error {
	reviews, err := r.reviews.Find(ctx, query.Query{
		Filters: []query.Filter{query.Where("tour", query.OpEq, strconv.FormatUint(tourID, 10))},
	})
	if err != nil {
		return err
	}
	qty, avg := aggregate(reviews)

	for attempt := 0; ; attempt++ {
		tour, err := r.tours.Get(ctx, tourID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		tour.RatingsQuantity = qty
		tour.RatingsAverage = avg
		err = r.tours.Replace(ctx, &tour)
		if errors.Is(err, repository.ErrConflict) && attempt+1 < replaceAttempts {
			continue
		}
		return err
	}
}

func aggregate(reviews []model.Review) (int, float64) {
	if len(reviews) == 0 {
		return 0, model.DefaultRatingsAverage
	}
	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return len(reviews), roundTo1(float64(sum) / float64(len(reviews)))
}

func roundTo1(v float64) float64 { return math.Round(v*10) / 10 }
