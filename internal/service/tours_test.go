package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func point(lat, lng float64) *model.Location {
	return &model.Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

func seed(t *testing.T) *repository.Store {
	t.Helper()
	store := repository.NewMemoryStore()
	tours := []model.Tour{
		{Name: "The Forest Hiker", Difficulty: "easy", Price: 397, RatingsAverage: 4.7, RatingsQuantity: 37,
			StartDates: []time.Time{day("2021-04-25"), day("2021-07-20")}, StartLocation: point(51.417611, -116.214531)},
		{Name: "The Sea Explorer", Difficulty: "medium", Price: 497, RatingsAverage: 4.8, RatingsQuantity: 23,
			StartDates: []time.Time{day("2021-06-19"), day("2021-07-20")}, StartLocation: point(25.781842, -80.128473)},
		{Name: "The Snow Adventurer", Difficulty: "difficult", Price: 997, RatingsAverage: 4.5, RatingsQuantity: 13,
			StartDates: []time.Time{day("2022-01-05")}, StartLocation: point(39.182677, -106.855385)},
		{Name: "The City Wanderer", Difficulty: "easy", Price: 1197, RatingsAverage: 4.6, RatingsQuantity: 8,
			StartDates: []time.Time{day("2021-07-10")}},
		{Name: "The Park Camper", Difficulty: "medium", Price: 1497, RatingsAverage: 4.2, RatingsQuantity: 17,
			StartDates: []time.Time{day("2021-08-05")}, StartLocation: point(36.110904, -115.172652)},
		{Name: "The Hidden Retreat", Difficulty: "easy", Price: 50, RatingsAverage: 5, SecretTour: true,
			StartDates: []time.Time{day("2021-07-01")}, StartLocation: point(51.4, -116.2)},
	}
	for i := range tours {
		require.NoError(t, store.Tours.Insert(context.Background(), &tours[i]))
	}
	return store
}

func TestStats_GroupsByDifficulty(t *testing.T) {
	stats, err := NewTours(seed(t).Tours).Stats(context.Background())
	require.NoError(t, err)

	require.Len(t, stats, 3)
	assert.Equal(t, "MEDIUM", stats[0].Difficulty)
	assert.Equal(t, 1, stats[0].NumTours)

	assert.Equal(t, "EASY", stats[1].Difficulty)
	assert.Equal(t, 2, stats[1].NumTours)
	assert.Equal(t, 45, stats[1].NumRatings)
	assert.InDelta(t, 797, stats[1].AvgPrice, 1e-9)
	assert.Equal(t, 397.0, stats[1].MinPrice)
	assert.Equal(t, 1197.0, stats[1].MaxPrice)
	assert.InDelta(t, 4.65, stats[1].AvgRating, 1e-9)

	assert.Equal(t, "DIFFICULT", stats[2].Difficulty)
}

func TestMonthlyPlan(t *testing.T) {
	plan, err := NewTours(seed(t).Tours).MonthlyPlan(context.Background(), 2021)
	require.NoError(t, err)

	require.NotEmpty(t, plan)
	assert.Equal(t, 7, plan[0].Month)
	assert.Equal(t, 3, plan[0].NumTourStarts)
	assert.ElementsMatch(t, []string{"The Forest Hiker", "The Sea Explorer", "The City Wanderer"}, plan[0].Tours)

	months := map[int]int{}
	for _, p := range plan {
		months[p.Month] = p.NumTourStarts
	}
	assert.Equal(t, map[int]int{4: 1, 6: 1, 7: 3, 8: 1}, months)
}

func TestWithin(t *testing.T) {
	svc := NewTours(seed(t).Tours)
	center := Point{Lat: 34.111745, Lng: -118.113491} // Los Angeles

	near, err := svc.Within(context.Background(), 400, center, "mi")
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, "The Park Camper", near[0].Name)

	wide, err := svc.Within(context.Background(), 2000, center, "km")
	require.NoError(t, err)
	names := []string{}
	for _, tr := range wide {
		names = append(names, tr.Name)
	}
	assert.ElementsMatch(t, []string{"The Park Camper", "The Snow Adventurer", "The Forest Hiker"}, names)
}

func TestDistances(t *testing.T) {
	svc := NewTours(seed(t).Tours)
	center := Point{Lat: 34.111745, Lng: -118.113491}

	km, err := svc.Distances(context.Background(), center, "km")
	require.NoError(t, err)
	require.Len(t, km, 4)
	assert.Equal(t, "The Park Camper", km[0].Name)
	assert.InDelta(t, 348.2, km[0].Distance, 0.5)
	for i := 1; i < len(km); i++ {
		assert.LessOrEqual(t, km[i-1].Distance, km[i].Distance)
	}

	mi, err := svc.Distances(context.Background(), center, "mi")
	require.NoError(t, err)
	assert.InDelta(t, km[0].Distance*0.621371, mi[0].Distance, 0.01)
}

func TestParseLatLng(t *testing.T) {
	p, err := ParseLatLng("34.111745,-118.113491")
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 34.111745, Lng: -118.113491}, p)

	for _, raw := range []string{"", "34.1", "a,b", "95,10"} {
		_, err := ParseLatLng(raw)
		var ae *apperror.Error
		require.ErrorAs(t, err, &ae, raw)
		assert.Equal(t, 400, ae.Status)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "the-forest-hiker", Slugify("The Forest Hiker"))
	assert.Equal(t, "northern-lights-2", Slugify("  Northern   Lights -- 2!"))
}
