package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movielog/internal/catalog"
	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/events"
	"github.com/Clark-Hu/movielog/internal/repository"
	"github.com/Clark-Hu/movielog/internal/store"
	"github.com/Clark-Hu/movielog/internal/testutil"
	"github.com/Clark-Hu/movielog/internal/tmdb"
)

var pg *testutil.Postgres

func TestMain(m *testing.M) {
	var err error
	pg, err = testutil.Start(context.Background(), "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	code := m.Run()
	pg.Stop()
	os.Exit(code)
}

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
}

func (p *fakeProvider) FetchMovie(_ context.Context, tmdbID string) (domain.MovieDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[tmdbID]++
	if strings.HasPrefix(tmdbID, "404") {
		return domain.MovieDescriptor{}, tmdb.ErrNotFound
	}
	return domain.MovieDescriptor{TMDBID: tmdbID, Name: "Movie " + tmdbID, Description: "d", ReleaseDate: "2001-01-01"}, nil
}

func (p *fakeProvider) Calls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

type harness struct {
	ctx      context.Context
	svc      *Service
	repo     *repository.Repository
	provider *fakeProvider
	events   *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, pg.Truncate(ctx))

	repo := repository.NewWithDB(pg.Pool)
	provider := &fakeProvider{}
	recorder := &events.Recorder{}
	svc := NewService(store.NewFromPool(pg.Pool, nil), repo, catalog.NewResolver(provider, nil), recorder, nil)
	return &harness{ctx: ctx, svc: svc, repo: repo, provider: provider, events: recorder}
}

func (h *harness) user(t *testing.T, name string) domain.Caller {
	t.Helper()
	u, err := h.repo.Users.Create(h.ctx, repository.UserCreateParams{Username: name, PasswordHash: "x"})
	require.NoError(t, err)
	return domain.AuthenticatedCaller(u.ID)
}

func (h *harness) movie(t *testing.T, tmdbID string) domain.Movie {
	t.Helper()
	m, err := h.repo.Movies.GetByTMDBID(h.ctx, tmdbID)
	require.NoError(t, err)
	return m
}

// assertConsistent checks the stored aggregate against the rating rows.
func (h *harness) assertConsistent(t *testing.T, tmdbID string) domain.Movie {
	t.Helper()
	m := h.movie(t, tmdbID)
	recount, err := testutil.RecountRatings(h.ctx, pg.Pool, m.ID)
	require.NoError(t, err)
	assert.Equal(t, recount.Count, m.Rating.Count, "count")
	assert.Equal(t, recount.Sum, m.Rating.Sum, "sum")
	assert.Equal(t, roundedAverage(recount.Sum, recount.Count), m.Rating.Average, "average")
	return m
}

func validReview(suffix string) ReviewInput {
	return ReviewInput{
		Title: "A thoughtful title " + suffix,
		Body:  strings.Repeat("lorem ipsum ", 40),
	}
}

func TestRatingLifecycle(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	first, err := h.svc.CreateRating(h.ctx, alice, "603", 8)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 8, Average: 8}, first.Movie.Rating)
	assert.Equal(t, "Movie 603", first.Movie.Name)
	assert.Equal(t, 1, h.provider.Calls("603"))

	second, err := h.svc.CreateRating(h.ctx, bob, "603", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingAggregate{Count: 2, Sum: 13, Average: 7}, second.Movie.Rating)
	assert.Equal(t, first.Movie.ID, second.Movie.ID)
	assert.Equal(t, 1, h.provider.Calls("603"), "known movie must not be fetched again")

	updated, err := h.svc.UpdateRating(h.ctx, alice, "603", first.Rating.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rating.Value)
	assert.Equal(t, domain.RatingAggregate{Count: 2, Sum: 8, Average: 4}, updated.Movie.Rating)

	movie, err := h.svc.DeleteRating(h.ctx, alice, "603", first.Rating.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 5, Average: 5}, movie.Rating)

	movie, err = h.svc.DeleteRating(h.ctx, bob, "603", second.Rating.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RatingAggregate{}, movie.Rating)

	h.assertConsistent(t, "603")
	assert.Equal(t, []string{
		events.RatingCreated, events.RatingCreated, events.RatingUpdated, events.RatingDeleted, events.RatingDeleted,
	}, h.events.Types())
}

func TestCreateRating_DuplicateLeavesAggregate(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	_, err := h.svc.CreateRating(h.ctx, alice, "603", 8)
	require.NoError(t, err)

	_, err = h.svc.CreateRating(h.ctx, alice, "603", 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	m := h.assertConsistent(t, "603")
	assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 8, Average: 8}, m.Rating)
}

func TestCreateRating_RejectsBeforeTouchingStore(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	_, err := h.svc.CreateRating(h.ctx, domain.Caller{}, "603", 8)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = h.svc.CreateRating(h.ctx, alice, "603", 11)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = h.svc.CreateRating(h.ctx, alice, "603", 0)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	assert.Equal(t, 0, h.provider.Calls("603"))
	_, err = h.repo.Movies.GetByTMDBID(h.ctx, "603")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateRating_UnknownMovie(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	_, err := h.svc.CreateRating(h.ctx, alice, "404001", 8)
	assert.ErrorIs(t, err, domain.ErrMovieNotFound)

	_, err = h.repo.Movies.GetByTMDBID(h.ctx, "404001")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, h.events.Events())
}

func TestCreateRating_DeletedAccountIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	ghost := domain.AuthenticatedCaller("0190b3d2-0000-7000-8000-000000000000")

	_, err := h.svc.CreateRating(h.ctx, ghost, "603", 8)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = h.repo.Movies.GetByTMDBID(h.ctx, "603")
	assert.ErrorIs(t, err, repository.ErrNotFound, "the movie insert must roll back")
}

func TestMutationGuard(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	onMatrix, err := h.svc.CreateRating(h.ctx, alice, "603", 8)
	require.NoError(t, err)
	_, err = h.svc.CreateRating(h.ctx, alice, "604", 6)
	require.NoError(t, err)

	cases := []struct {
		name     string
		caller   domain.Caller
		tmdbID   string
		ratingID string
		want     error
	}{
		{"anonymous", domain.Caller{}, "603", onMatrix.Rating.ID, domain.ErrUnauthenticated},
		{"unknown movie", alice, "999", onMatrix.Rating.ID, domain.ErrMovieNotFound},
		{"unknown rating", alice, "603", "0190b3d2-0000-7000-8000-000000000001", domain.ErrResourceNotFound},
		{"malformed rating id", alice, "603", "not-a-uuid", domain.ErrResourceNotFound},
		{"rating of another movie", alice, "604", onMatrix.Rating.ID, domain.ErrResourceNotFound},
		{"not the owner", bob, "603", onMatrix.Rating.ID, domain.ErrNotAuthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.UpdateRating(h.ctx, tc.caller, tc.tmdbID, tc.ratingID, 1)
			assert.ErrorIs(t, err, tc.want, "update")
			_, err = h.svc.DeleteRating(h.ctx, tc.caller, tc.tmdbID, tc.ratingID)
			assert.ErrorIs(t, err, tc.want, "delete")
		})
	}

	m := h.assertConsistent(t, "603")
	assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 8, Average: 8}, m.Rating)
	assert.Equal(t, 0, h.provider.Calls("999"), "mutations never create movies")
}

func TestRatingFor(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	got, err := h.svc.RatingFor(h.ctx, alice, "603")
	require.NoError(t, err)
	assert.Nil(t, got)

	created, err := h.svc.CreateRating(h.ctx, alice, "603", 9)
	require.NoError(t, err)

	got, err = h.svc.RatingFor(h.ctx, alice, "603")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Rating.ID, got.ID)

	got, err = h.svc.RatingFor(h.ctx, bob, "603")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = h.svc.RatingFor(h.ctx, domain.Caller{}, "603")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestReviewLifecycle(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	created, err := h.svc.CreateReview(h.ctx, alice, "603", validReview("one"))
	require.NoError(t, err)
	assert.Equal(t, "A thoughtful title one", created.Review.Title)

	_, err = h.svc.CreateReview(h.ctx, alice, "603", validReview("two"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = h.svc.UpdateReview(h.ctx, bob, "603", created.Review.ID, validReview("bob"))
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	updated, err := h.svc.UpdateReview(h.ctx, alice, "603", created.Review.ID, validReview("edited"))
	require.NoError(t, err)
	assert.Equal(t, "A thoughtful title edited", updated.Review.Title)

	err = h.svc.DeleteReview(h.ctx, bob, "603", created.Review.ID)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	require.NoError(t, h.svc.DeleteReview(h.ctx, alice, "603", created.Review.ID))
	err = h.svc.DeleteReview(h.ctx, alice, "603", created.Review.ID)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	// Reviews never move the rating aggregate.
	m := h.assertConsistent(t, "603")
	assert.Equal(t, domain.RatingAggregate{}, m.Rating)
}

func TestCreateReview_Validation(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	_, err := h.svc.CreateReview(h.ctx, alice, "603", ReviewInput{Title: "short", Body: validReview("").Body})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = h.svc.CreateReview(h.ctx, alice, "603", ReviewInput{Title: "A long enough title", Body: "too short"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	assert.Equal(t, 0, h.provider.Calls("603"))
}

func TestDeleteUser_ReconcilesEveryMovie(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")

	for i, id := range []string{"601", "602", "603"} {
		_, err := h.svc.CreateRating(h.ctx, alice, id, 10-i)
		require.NoError(t, err)
		_, err = h.svc.CreateRating(h.ctx, bob, id, 2)
		require.NoError(t, err)
	}
	_, err := h.svc.CreateReview(h.ctx, alice, "601", validReview("alice"))
	require.NoError(t, err)
	_, err = h.repo.Lists.Create(h.ctx, alice.UserID, repository.ListParams{Name: "alice's favourites"})
	require.NoError(t, err)

	_, err = h.svc.DeleteUser(h.ctx, bob, alice.UserID)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = h.svc.DeleteUser(h.ctx, alice, "0190b3d2-0000-7000-8000-000000000009")
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	report, err := h.svc.DeleteUser(h.ctx, alice, alice.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.RatingsRemoved)
	assert.EqualValues(t, 1, report.ReviewsRemoved)
	assert.EqualValues(t, 1, report.ListsRemoved)
	assert.Len(t, report.MoviesTouched, 3)

	for _, id := range []string{"601", "602", "603"} {
		m := h.assertConsistent(t, id)
		assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 2, Average: 2}, m.Rating, "movie %s", id)
	}
	_, err = h.repo.Users.GetByID(h.ctx, alice.UserID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, h.events.Types(), events.UserDeleted)
}

func TestDeleteUser_WithoutRatings(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	report, err := h.svc.DeleteUser(h.ctx, alice, alice.UserID)
	require.NoError(t, err)
	assert.Zero(t, report.RatingsRemoved)
	assert.Empty(t, report.MoviesTouched)
}

func TestConcurrentFirstRatingsCreateOneMovie(t *testing.T) {
	h := newHarness(t)

	const workers = 12
	callers := make([]domain.Caller, workers)
	for i := range callers {
		callers[i] = h.user(t, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	for i, c := range callers {
		wg.Add(1)
		go func(c domain.Caller, value int) {
			defer wg.Done()
			_, err := h.svc.CreateRating(h.ctx, c, "700", value)
			assert.NoError(t, err)
		}(c, 1+i%MaxRating)
	}
	wg.Wait()

	var count int
	require.NoError(t, pg.Pool.QueryRow(h.ctx, `SELECT COUNT(*) FROM movies WHERE tmdb_id = '700'`).Scan(&count))
	assert.Equal(t, 1, count)

	m := h.assertConsistent(t, "700")
	assert.EqualValues(t, workers, m.Rating.Count)
}

func TestConcurrentDuplicateCreatesYieldOneRating(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreateRating(h.ctx, alice, "701", 7)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	m := h.assertConsistent(t, "701")
	assert.Equal(t, domain.RatingAggregate{Count: 1, Sum: 7, Average: 7}, m.Rating)
}

func TestConcurrentDuplicateCreatesYieldOneReview(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.CreateReview(h.ctx, alice, "702", validReview(fmt.Sprint(i)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	var reviews, movies int
	require.NoError(t, pg.Pool.QueryRow(h.ctx,
		`SELECT COUNT(*) FROM reviews r JOIN movies m ON m.id = r.movie_id WHERE m.tmdb_id = '702'`).Scan(&reviews))
	require.NoError(t, pg.Pool.QueryRow(h.ctx, `SELECT COUNT(*) FROM movies WHERE tmdb_id = '702'`).Scan(&movies))
	assert.Equal(t, 1, reviews)
	assert.Equal(t, 1, movies)
	assert.Equal(t, []string{events.ReviewCreated}, h.events.Types())
}

// stalledPublisher blocks until the publish context ends.
type stalledPublisher struct {
	errs chan error
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	p.errs <- ctx.Err()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func TestStalledBrokerDoesNotHoldCommittedWrites(t *testing.T) {
	h := newHarness(t)
	alice := h.user(t, "alice")

	pub := &stalledPublisher{errs: make(chan error, 1)}
	svc := NewService(store.NewFromPool(pg.Pool, nil), h.repo, catalog.NewResolver(h.provider, nil), pub, nil)
	svc.publishTimeout = 50 * time.Millisecond

	start := time.Now()
	res, err := svc.CreateRating(h.ctx, alice, "703", 6)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, <-pub.errs, context.DeadlineExceeded)

	// The write committed regardless of the broker.
	assert.EqualValues(t, 1, res.Movie.Rating.Count)
	h.assertConsistent(t, "703")
}

func TestConcurrentMixedOperationsStayConsistent(t *testing.T) {
	h := newHarness(t)

	victim := h.user(t, "victim")
	_, err := h.svc.CreateRating(h.ctx, victim, "800", 9)
	require.NoError(t, err)

	const workers = 6
	callers := make([]domain.Caller, workers)
	for i := range callers {
		callers[i] = h.user(t, fmt.Sprintf("mixed-%d", i))
	}

	var wg sync.WaitGroup
	for i, c := range callers {
		wg.Add(1)
		go func(i int, c domain.Caller) {
			defer wg.Done()
			for round := 0; round < 5; round++ {
				res, err := h.svc.CreateRating(h.ctx, c, "800", 1+(i+round)%MaxRating)
				if !assert.NoError(t, err) {
					return
				}
				_, err = h.svc.UpdateRating(h.ctx, c, "800", res.Rating.ID, 1+(i*round)%MaxRating)
				assert.NoError(t, err)
				if round < 4 {
					_, err = h.svc.DeleteRating(h.ctx, c, "800", res.Rating.ID)
					assert.NoError(t, err)
				}
			}
		}(i, c)
	}
	// An account deletion racing the raters.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.svc.DeleteUser(h.ctx, victim, victim.UserID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	m := h.assertConsistent(t, "800")
	assert.EqualValues(t, workers, m.Rating.Count)
}
