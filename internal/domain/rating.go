package domain

import "time"

// Rating is a single user's 1..10 score for a movie.
type Rating struct {
	ID        string
	UserID    string
	MovieID   string
	Value     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Owner returns the user that created the rating.
func (r Rating) Owner() string { return r.UserID }

// Movie returns the local movie id the rating belongs to.
func (r Rating) Movie() string { return r.MovieID }

// RatingAggregate is the denormalized summary kept on each movie.
// Average is the JS-style rounded quotient Sum/Count, zero when Count is zero.
type RatingAggregate struct {
	Count   int64
	Sum     int64
	Average int64
}
