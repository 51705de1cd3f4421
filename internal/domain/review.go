package domain

import "time"

// Review is a long-form text review. A user holds at most one review per movie.
type Review struct {
	ID        string
	UserID    string
	MovieID   string
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Review) Owner() string { return r.UserID }

func (r Review) Movie() string { return r.MovieID }
