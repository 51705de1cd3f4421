package library

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movielog/internal/catalog"
	"github.com/Clark-Hu/movielog/internal/domain"
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

type stubProvider struct{}

func (stubProvider) FetchMovie(_ context.Context, tmdbID string) (domain.MovieDescriptor, error) {
	if tmdbID == "0" {
		return domain.MovieDescriptor{}, tmdb.ErrNotFound
	}
	return domain.MovieDescriptor{TMDBID: tmdbID, Name: "Movie " + tmdbID}, nil
}

func setup(t *testing.T) (context.Context, *Service, *repository.Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, pg.Truncate(ctx))
	repo := repository.NewWithDB(pg.Pool)
	svc := NewService(store.NewFromPool(pg.Pool, nil), repo, catalog.NewResolver(stubProvider{}, nil), nil)
	return ctx, svc, repo
}

func newCaller(t *testing.T, ctx context.Context, repo *repository.Repository, name string) domain.Caller {
	t.Helper()
	u, err := repo.Users.Create(ctx, repository.UserCreateParams{Username: name, PasswordHash: "x"})
	require.NoError(t, err)
	return domain.AuthenticatedCaller(u.ID)
}

func TestListLifecycle(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")
	bob := newCaller(t, ctx, repo, "bob")

	list, err := svc.CreateList(ctx, alice, ListInput{Name: "Best of the nineties", TMDBIDs: []string{"603", "550", "603"}})
	require.NoError(t, err)
	require.Len(t, list.Movies, 2)
	assert.Equal(t, "603", list.Movies[0].TMDBID)
	assert.Equal(t, "550", list.Movies[1].TMDBID)

	_, err = svc.UpdateList(ctx, bob, list.ID, ListUpdate{Name: ptr("Hijacked by somebody")})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	updated, err := svc.UpdateList(ctx, alice, list.ID, ListUpdate{
		Name:        ptr("Best of the nineties, v2"),
		Description: ptr("now shorter"),
		TMDBIDs:     &[]string{"550"},
	})
	require.NoError(t, err)
	assert.Equal(t, "now shorter", updated.Description)

	got, err := svc.GetList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, got.Movies, 1)
	assert.Equal(t, "550", got.Movies[0].TMDBID)

	lists, total, err := svc.UserLists(ctx, alice.UserID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, lists, 1)

	assert.ErrorIs(t, svc.DeleteList(ctx, bob, list.ID), domain.ErrNotAuthorized)
	require.NoError(t, svc.DeleteList(ctx, alice, list.ID))
	_, err = svc.GetList(ctx, list.ID)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func ptr[T any](v T) *T { return &v }

func TestUpdateList_PartialKeepsOtherFields(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")

	list, err := svc.CreateList(ctx, alice, ListInput{Name: "Rainy afternoons", Description: "soft films", TMDBIDs: []string{"1", "2"}})
	require.NoError(t, err)

	renamed, err := svc.UpdateList(ctx, alice, list.ID, ListUpdate{Name: ptr("Rainy afternoons, indoors")})
	require.NoError(t, err)
	assert.Equal(t, "soft films", renamed.Description)
	require.Len(t, renamed.Movies, 2)
	assert.Equal(t, "1", renamed.Movies[0].TMDBID)

	_, err = svc.UpdateList(ctx, alice, list.ID, ListUpdate{Name: ptr("tiny")})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.UpdateList(ctx, alice, list.ID, ListUpdate{TMDBIDs: &[]string{"3", "0"}})
	assert.ErrorIs(t, err, domain.ErrMovieNotFound)
	got, err := svc.GetList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rainy afternoons, indoors", got.Name)
	assert.Len(t, got.Movies, 2, "failed update leaves movies untouched")
}

func TestUpdateList_ConcurrentPartialEditsBothSurvive(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")

	const rounds = 10
	for round := 0; round < rounds; round++ {
		list, err := svc.CreateList(ctx, alice, ListInput{Name: "Original list name", Description: "original", TMDBIDs: []string{"1"}})
		require.NoError(t, err)

		newName := fmt.Sprintf("Renamed list number %d", round)
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateList(ctx, alice, list.ID, ListUpdate{Name: ptr(newName)})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.UpdateList(ctx, alice, list.ID, ListUpdate{TMDBIDs: &[]string{"2", "3"}})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.UpdateList(ctx, alice, list.ID, ListUpdate{Description: ptr("edited")})
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := svc.GetList(ctx, list.ID)
		require.NoError(t, err)
		assert.Equal(t, newName, got.Name)
		assert.Equal(t, "edited", got.Description)
		require.Len(t, got.Movies, 2)
		assert.Equal(t, "2", got.Movies[0].TMDBID)
		assert.Equal(t, "3", got.Movies[1].TMDBID)
	}
}

func TestCreateList_Validation(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")

	_, err := svc.CreateList(ctx, alice, ListInput{Name: "short"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	ids := make([]string, ListMoviesMax+1)
	for i := range ids {
		ids[i] = fmt.Sprint(i + 1)
	}
	_, err = svc.CreateList(ctx, alice, ListInput{Name: "Far too many movies", TMDBIDs: ids})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.CreateList(ctx, domain.Caller{}, ListInput{Name: "Anonymous curation"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCreateList_UnknownMovieRollsBack(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")

	_, err := svc.CreateList(ctx, alice, ListInput{Name: "Contains a ghost", TMDBIDs: []string{"603", "0"}})
	assert.ErrorIs(t, err, domain.ErrMovieNotFound)

	_, err = repo.Movies.GetByTMDBID(ctx, "603")
	assert.ErrorIs(t, err, repository.ErrNotFound, "resolved movies roll back with the list")
	_, total, err := svc.UserLists(ctx, alice.UserID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWatchlist(t *testing.T) {
	ctx, svc, repo := setup(t)
	alice := newCaller(t, ctx, repo, "alice")
	bob := newCaller(t, ctx, repo, "bob")

	w, err := svc.ReplaceWatchlist(ctx, alice, alice.UserID, []string{"11", "12"})
	require.NoError(t, err)
	assert.Len(t, w.Movies, 2)

	_, err = svc.ReplaceWatchlist(ctx, bob, alice.UserID, []string{"13"})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = svc.ReplaceWatchlist(ctx, bob, "0190b3d2-0000-7000-8000-00000000000a", nil)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	movies, total, err := svc.Watchlist(ctx, alice.UserID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, movies, 1)
	assert.Equal(t, "12", movies[0].TMDBID)
}
