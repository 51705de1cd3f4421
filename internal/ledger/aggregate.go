// Package ledger owns every write that touches a movie's rating aggregate,
// plus the ownership rules shared by ratings and reviews.
package ledger

import (
	"errors"
	"fmt"

	"github.com/Clark-Hu/movielog/internal/domain"
)

const (
	MinRating = 1
	MaxRating = 10
)

// ErrInconsistentAggregate reports a removal that would drive the stored
// aggregate negative. The surrounding transaction must abort.
var ErrInconsistentAggregate = errors.New("ledger: inconsistent rating aggregate")

// ValidateRating rejects values outside MinRating..MaxRating.
func ValidateRating(value int) error {
	if value < MinRating || value > MaxRating {
		return domain.E(domain.KindValidationFailed, "rating.validate", "value",
			fmt.Errorf("value %d outside %d..%d", value, MinRating, MaxRating))
	}
	return nil
}

// ApplyNew adds one rating to agg.
func ApplyNew(agg domain.RatingAggregate, value int) (domain.RatingAggregate, error) {
	if err := ValidateRating(value); err != nil {
		return agg, err
	}
	return withAverage(domain.RatingAggregate{
		Count: agg.Count + 1,
		Sum:   agg.Sum + int64(value),
	})
}

// ApplyChange replaces one rating value with another; the count is unchanged.
func ApplyChange(agg domain.RatingAggregate, oldValue, newValue int) (domain.RatingAggregate, error) {
	if err := ValidateRating(newValue); err != nil {
		return agg, err
	}
	if agg.Count <= 0 {
		return agg, fmt.Errorf("%w: change on count %d", ErrInconsistentAggregate, agg.Count)
	}
	return withAverage(domain.RatingAggregate{
		Count: agg.Count,
		Sum:   agg.Sum - int64(oldValue) + int64(newValue),
	})
}

// ApplyRemoval subtracts one rating from agg. Removing the last rating
// yields the zero aggregate.
func ApplyRemoval(agg domain.RatingAggregate, value int) (domain.RatingAggregate, error) {
	return withAverage(domain.RatingAggregate{
		Count: agg.Count - 1,
		Sum:   agg.Sum - int64(value),
	})
}

func withAverage(agg domain.RatingAggregate) (domain.RatingAggregate, error) {
	if agg.Count < 0 || agg.Sum < 0 || (agg.Count == 0 && agg.Sum != 0) {
		return domain.RatingAggregate{}, fmt.Errorf("%w: count=%d sum=%d", ErrInconsistentAggregate, agg.Count, agg.Sum)
	}
	agg.Average = roundedAverage(agg.Sum, agg.Count)
	return agg, nil
}

// roundedAverage is floor(sum/count + 0.5) in integer arithmetic, which
// rounds halves up like JavaScript's Math.round for non-negative input.
func roundedAverage(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	return (2*sum + count) / (2 * count)
}
