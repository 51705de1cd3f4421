// Package tmdb fetches movie descriptors from The Movie Database API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Clark-Hu/movielog/internal/domain"
)

// PosterBaseURL prefixes poster paths returned by the API.
const PosterBaseURL = "https://image.tmdb.org/t/p/w185/"

var (
	// ErrNotFound is returned when upstream cannot find the requested movie.
	ErrNotFound = errors.New("tmdb: movie not found")
	// ErrInvalidPayload is returned when upstream answers without the fields a movie needs.
	ErrInvalidPayload = errors.New("tmdb: invalid payload")
)

// Client fetches a movie descriptor by its TMDB id.
type Client interface {
	FetchMovie(ctx context.Context, tmdbID string) (domain.MovieDescriptor, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Options tunes the HTTP client. Zero values fall back to defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond int
	Logger            *slog.Logger
}

// NewHTTPClient constructs a new HTTP-backed TMDB client.
func NewHTTPClient(baseURL, apiKey string, opts Options) (*HTTPClient, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}

	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  logger.With("component", "tmdb"),
	}, nil
}

// FetchMovie retrieves a movie by TMDB id. Ids that are not positive
// integers are reported as ErrNotFound without calling upstream.
func (c *HTTPClient) FetchMovie(ctx context.Context, tmdbID string) (domain.MovieDescriptor, error) {
	if !ValidID(tmdbID) {
		return domain.MovieDescriptor{}, ErrNotFound
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.MovieDescriptor{}, fmt.Errorf("tmdb rate limit: %w", err)
	}

	endpoint := c.baseURL.JoinPath("movie", tmdbID)
	q := endpoint.Query()
	q.Set("api_key", c.apiKey)
	q.Set("language", "en-US")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.MovieDescriptor{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.MovieDescriptor{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload apiMovie
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return domain.MovieDescriptor{}, fmt.Errorf("decode tmdb response: %w", err)
		}
		return toDescriptor(tmdbID, payload)
	case http.StatusNotFound:
		return domain.MovieDescriptor{}, ErrNotFound
	default:
		c.logger.Warn("unexpected upstream status", "status", resp.StatusCode, "tmdb_id", tmdbID)
		return domain.MovieDescriptor{}, fmt.Errorf("tmdb: upstream returned %d", resp.StatusCode)
	}
}

// ValidID reports whether id looks like a TMDB movie id.
func ValidID(id string) bool {
	n, err := strconv.ParseUint(id, 10, 64)
	return err == nil && n > 0 && strconv.FormatUint(n, 10) == id
}

type apiMovie struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
}

func toDescriptor(requestedID string, payload apiMovie) (domain.MovieDescriptor, error) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		return domain.MovieDescriptor{}, ErrInvalidPayload
	}

	tmdbID := requestedID
	if payload.ID > 0 {
		tmdbID = strconv.FormatInt(payload.ID, 10)
	}

	photo := ""
	if poster := strings.TrimLeft(strings.TrimSpace(payload.PosterPath), "/"); poster != "" {
		photo = PosterBaseURL + poster
	}

	return domain.MovieDescriptor{
		TMDBID:      tmdbID,
		Name:        title,
		Description: strings.TrimSpace(payload.Overview),
		Photo:       photo,
		ReleaseDate: strings.TrimSpace(payload.ReleaseDate),
	}, nil
}
