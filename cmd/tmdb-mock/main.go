package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// movieEntry mirrors the subset of the /movie/{id} payload the server reads.
type movieEntry struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
}

func main() {
	var (
		port    = flag.String("port", "9098", "port to listen on")
		data    = flag.String("data", "cmd/tmdb-mock/testdata/movies.json", "path to mock data file keyed by TMDB id")
		apiKey  = flag.String("api-key", "", "reject requests whose api_key differs (empty accepts any)")
		logReqs = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}
	var payload map[string]movieEntry
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	addr := ":" + *port
	log.Printf("mock tmdb listening on %s with %d movies", addr, len(payload))
	if err := http.ListenAndServe(addr, newRouter(payload, *apiKey, *logReqs)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newRouter(payload map[string]movieEntry, apiKey string, logReqs bool) http.Handler {
	r := chi.NewRouter()
	if logReqs {
		r.Use(middleware.Logger)
	}
	r.Get("/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" && r.URL.Query().Get("api_key") != apiKey {
			writeStatus(w, http.StatusUnauthorized, 7, "Invalid API key: You must be granted a valid key.")
			return
		}
		entry, ok := payload[chi.URLParam(r, "id")]
		if !ok {
			writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return r
}

func writeStatus(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":        false,
		"status_code":    code,
		"status_message": message,
	})
}
