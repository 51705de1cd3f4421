package httpserver

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movielog/internal/events"
)

func TestRatingEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	_, alice := env.account(t, "alice_01")
	_, bob := env.account(t, "bob_0001")

	rec := env.do(t, http.MethodPost, "/api/v1/movies/603/rates", "", map[string]any{"value": 7})
	assertError(t, rec, http.StatusUnauthorized, "UNAUTHENTICATED")

	rec = env.do(t, http.MethodPost, "/api/v1/movies/603/rates", alice, `{"value":"7"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ratingMutationResponse](t, rec)
	require.NotNil(t, created.Rate)
	assert.Equal(t, 7, created.Rate.Value)
	assert.Equal(t, "603", created.Rate.MovieID)
	assert.Equal(t, "603", created.Movie.ID)
	assert.Equal(t, "Movie 603", created.Movie.Name)
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/poster-603.jpg", created.Movie.Photo)
	assert.EqualValues(t, 1, created.Movie.RateCount)
	assert.EqualValues(t, 7, created.Movie.RateAverage)

	rec = env.do(t, http.MethodPost, "/api/v1/movies/603/rates", alice, map[string]any{"value": 3})
	assertError(t, rec, http.StatusConflict, "ALREADY_EXISTS")

	rec = env.do(t, http.MethodPost, "/api/v1/movies/603/rates", bob, map[string]any{"value": 8})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 8, decodeBody[ratingMutationResponse](t, rec).Movie.RateAverage, "7.5 rounds half up")

	ratePath := "/api/v1/movies/603/rates/" + created.Rate.ID
	rec = env.do(t, http.MethodPut, ratePath, bob, map[string]any{"value": 1})
	assertError(t, rec, http.StatusUnauthorized, "NOT_AUTHORIZED")

	rec = env.do(t, http.MethodPut, ratePath, alice, map[string]any{"value": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[ratingMutationResponse](t, rec)
	assert.Equal(t, 4, updated.Rate.Value)
	assert.EqualValues(t, 2, updated.Movie.RateCount)
	assert.EqualValues(t, 6, updated.Movie.RateAverage)

	rec = env.do(t, http.MethodGet, "/api/v1/movies/603/rateUser", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[callerRatingResponse](t, rec)
	require.NotNil(t, mine.Rate)
	assert.Equal(t, created.Rate.ID, mine.Rate.ID)
	assert.Equal(t, 4, mine.Rate.Value)

	rec = env.do(t, http.MethodDelete, ratePath, bob, nil)
	assertError(t, rec, http.StatusUnauthorized, "NOT_AUTHORIZED")

	rec = env.do(t, http.MethodDelete, ratePath, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/movies/603/rateUser", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rate":null}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/movies/603", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movie := decodeBody[movieResponse](t, rec)
	assert.EqualValues(t, 1, movie.RateCount)
	assert.EqualValues(t, 8, movie.RateAverage)

	assert.Equal(t, []string{
		events.RatingCreated, events.RatingCreated, events.RatingUpdated, events.RatingDeleted,
	}, env.events.Types())
}

func TestCreateRating_RejectsBadValues(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.account(t, "carol_01")

	tests := []struct {
		name string
		body string
	}{
		{"above range", `{"value":11}`},
		{"below range", `{"value":0}`},
		{"fraction", `{"value":7.5}`},
		{"word", `{"value":"seven"}`},
		{"null", `{"value":null}`},
		{"missing", `{}`},
		{"unknown field", `{"value":5,"extra":true}`},
		{"malformed", `{"value":`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/movies/603/rates", token, tt.body)
			assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}

	// Nothing reached the catalog.
	rec := env.do(t, http.MethodGet, "/api/v1/movies/603", "", nil)
	assertError(t, rec, http.StatusNotFound, "MOVIE_NOT_FOUND")
	assert.Empty(t, env.events.Types())
}

func TestCreateRating_OutOfRangeReportsField(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.account(t, "dave_001")

	rec := env.do(t, http.MethodPost, "/api/v1/movies/603/rates", token, `{"value":"42"}`)
	resp := assertError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	details, ok := resp.Details.([]any)
	require.True(t, ok, "details = %#v", resp.Details)
	require.Len(t, details, 1)
	assert.Equal(t, "value", details[0].(map[string]any)["field"])
}

func TestCreateRating_UnknownMovie(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.account(t, "erin_001")

	rec := env.do(t, http.MethodPost, "/api/v1/movies/404123/rates", token, map[string]any{"value": 5})
	assertError(t, rec, http.StatusNotFound, "MOVIE_NOT_FOUND")

	rec = env.do(t, http.MethodPost, "/api/v1/movies/not-an-id/rates", token, map[string]any{"value": 5})
	assertError(t, rec, http.StatusNotFound, "MOVIE_NOT_FOUND")
	assert.EqualValues(t, 1, env.tmdb.calls.Load(), "malformed ids never reach the provider")
}

func TestRatingMutation_UnknownRating(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.account(t, "frank_01")

	rec := env.do(t, http.MethodPost, "/api/v1/movies/603/rates", token, map[string]any{"value": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/movies/603/rates/not-a-uuid", token, map[string]any{"value": 6})
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = env.do(t, http.MethodDelete, "/api/v1/movies/999/rates/0190b3d2-0000-7000-8000-000000000001", token, nil)
	assertError(t, rec, http.StatusNotFound, "MOVIE_NOT_FOUND")
	assert.EqualValues(t, 1, env.tmdb.calls.Load(), "updates and deletes never create movies")
}

func TestGetCallerRating_RequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/v1/movies/603/rateUser", "", nil)
	assertError(t, rec, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func BenchmarkHandleCreateRating(b *testing.B) {
	env := newTestEnv(b, nil)
	_, token := env.account(b, "bench_user")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := "/api/v1/movies/" + strconv.Itoa(i+1) + "/rates"
		rec := env.do(b, http.MethodPost, path, token, `{"value":6}`)
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}
}
