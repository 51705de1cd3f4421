package domain

import "time"

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Caller identifies who issued a request. The zero value is an anonymous caller.
type Caller struct {
	UserID        string
	Authenticated bool
}

// AuthenticatedCaller builds a caller for a verified session.
func AuthenticatedCaller(userID string) Caller {
	return Caller{UserID: userID, Authenticated: userID != ""}
}

// Require returns the caller's user id or an Unauthenticated error for op.
func (c Caller) Require(op string) (string, error) {
	if !c.Authenticated || c.UserID == "" {
		return "", E(KindUnauthenticated, op, "", nil)
	}
	return c.UserID, nil
}
