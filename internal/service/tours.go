// Package service holds the tour computations that do not fit a single
// CRUD call: aggregate statistics, the monthly plan, geo lookups and the
// rating recomputation that follows review writes.
package service

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Earth radii used to turn distances into angles.
const (
	EarthRadiusMiles  = 3963.2
	EarthRadiusKm     = 6378.1
	earthRadiusMeters = 6378100.0

	metersToMiles = 0.000621371
	metersToKm    = 0.001

	// StatsMinRating is the ratingsAverage a tour needs to enter TourStats.
	StatsMinRating = 4.5
)

// MsgBadLatLng is returned when the center point cannot be parsed.
const MsgBadLatLng = "Please provide latitude and longitude in the format lat,lng."

// DifficultyStats is one row of the tour statistics report.
type DifficultyStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// MonthPlan counts tour starts in one calendar month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is how far a tour's start is from a point, in the requested
// unit.
type TourDistance struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Tours answers the aggregate and geo queries over the tour collection.
// Secret tours never take part.
type Tours struct {
	tours repository.Collection[model.Tour]
}

func NewTours(tours repository.Collection[model.Tour]) *Tours {
	return &Tours{tours: tours}
}

// Visible is the filter every public tour read carries.
func Visible() query.Filter { return query.Where("secretTour", query.OpNe, "true") }

func (s *Tours) all(ctx context.Context, filters ...query.Filter) ([]model.Tour, error) {
	return s.tours.Find(ctx, query.Query{Filters: append([]query.Filter{Visible()}, filters...)})
}

// Stats groups tours rated at least StatsMinRating by upper-cased
// difficulty, cheapest average first.
func (s *Tours) Stats(ctx context.Context) ([]DifficultyStats, error) {
	tours, err := s.all(ctx, query.Where("ratingsAverage", query.OpGte, strconv.FormatFloat(StatsMinRating, 'f', -1, 64)))
	if err != nil {
		return nil, err
	}
	type acc struct {
		DifficultyStats
		ratingSum, priceSum float64
	}
	groups := map[string]*acc{}
	for _, t := range tours {
		key := strings.ToUpper(t.Difficulty)
		g, ok := groups[key]
		if !ok {
			g = &acc{DifficultyStats: DifficultyStats{Difficulty: key, MinPrice: t.Price, MaxPrice: t.Price}}
			groups[key] = g
		}
		g.NumTours++
		g.NumRatings += t.RatingsQuantity
		g.ratingSum += t.RatingsAverage
		g.priceSum += t.Price
		g.MinPrice = math.Min(g.MinPrice, t.Price)
		g.MaxPrice = math.Max(g.MaxPrice, t.Price)
	}

	out := make([]DifficultyStats, 0, len(groups))
	for _, g := range groups {
		g.AvgRating = g.ratingSum / float64(g.NumTours)
		g.AvgPrice = g.priceSum / float64(g.NumTours)
		out = append(out, g.DifficultyStats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgPrice != out[j].AvgPrice {
			return out[i].AvgPrice < out[j].AvgPrice
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out, nil
}

// MonthlyPlan counts the start dates falling in year per month, busiest
// month first.
func (s *Tours) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	tours, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	months := map[int]*MonthPlan{}
	for _, t := range tours {
		for _, d := range t.StartDates {
			d = d.UTC()
			if d.Before(from) || d.After(to) {
				continue
			}
			m := int(d.Month())
			p, ok := months[m]
			if !ok {
				p = &MonthPlan{Month: m, Tours: []string{}}
				months[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, t.Name)
		}
	}

	out := make([]MonthPlan, 0, len(months))
	for _, p := range months {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumTourStarts != out[j].NumTourStarts {
			return out[i].NumTourStarts > out[j].NumTourStarts
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat, Lng float64
}

// ParseLatLng reads "lat,lng".
func ParseLatLng(raw string) (Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Point{}, apperror.New(http.StatusBadRequest, MsgBadLatLng)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return Point{}, apperror.New(http.StatusBadRequest, MsgBadLatLng)
	}
	return Point{Lat: lat, Lng: lng}, nil
}

// Miles reports whether unit selects miles; anything else means kilometers.
func Miles(unit string) bool { return unit == "mi" }

// Within returns the tours whose start location lies inside the spherical
// cap of the given radius around center.
func (s *Tours) Within(ctx context.Context, distance float64, center Point, unit string) ([]model.Tour, error) {
	if distance < 0 || math.IsNaN(distance) {
		return nil, apperror.New(http.StatusBadRequest, "Distance must be a positive number.")
	}
	radius := distance / EarthRadiusKm
	if Miles(unit) {
		radius = distance / EarthRadiusMiles
	}
	tours, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.Tour{}
	for _, t := range tours {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) < 2 {
			continue
		}
		if angle(center, Point{Lat: t.StartLocation.Lat(), Lng: t.StartLocation.Lng()}) <= radius {
			out = append(out, t)
		}
	}
	return out, nil
}

// Distances lists every located tour with its distance from center,
// nearest first.
func (s *Tours) Distances(ctx context.Context, center Point, unit string) ([]TourDistance, error) {
	mult := metersToKm
	if Miles(unit) {
		mult = metersToMiles
	}
	tours, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := []TourDistance{}
	for _, t := range tours {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) < 2 {
			continue
		}
		meters := angle(center, Point{Lat: t.StartLocation.Lat(), Lng: t.StartLocation.Lng()}) * earthRadiusMeters
		out = append(out, TourDistance{ID: t.ID, Name: t.Name, Distance: meters * mult})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// angle is the central angle between a and b in radians (haversine).
func angle(a, b Point) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}
