package domain

import "time"

// List is a named, ordered, user-owned collection of movies.
type List struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Movies      []Movie
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Watchlist is the single implicit list every user owns.
type Watchlist struct {
	UserID string
	Movies []Movie
}
