package domain

import "time"

// Movie is the local catalog entry created lazily from the external provider.
type Movie struct {
	ID          string
	TMDBID      string
	Name        string
	Description string
	Photo       string
	ReleaseDate string
	Rating      RatingAggregate
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MovieDescriptor is the provider's view of a movie before it is stored locally.
type MovieDescriptor struct {
	TMDBID      string
	Name        string
	Description string
	Photo       string
	ReleaseDate string
}
