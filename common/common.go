package common

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	guuid "github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NeighborsRecord holds a single neighbor in the api response
type NeighborsRecord struct {
	ID   int     `json:"id"`
	Dist float64 `json:"dist"`
}

// ResponseData holds the response data of any hanlder
type ResponseData struct {
	Results   interface{} `json:"neighbors,omitempty"`
	Message   string      `json:"message,omitempty"`
	ElapsedMs float64     `json:"elapsedMs,omitempty"`
}

// RequestData used for unpacking the request payload for knn and range queries
type RequestData struct {
	Method string  `json:"method,omitempty"`
	Vec    []int   `json:"vec,omitempty"`
	N      int     `json:"n,omitempty"`
	Radius float64 `json:"radius,omitempty"`
}

// NewLogger creates the process logger;
// pretty flag switches json output to the human-readable console writer
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// GetRandomID generates new run identifier
func GetRandomID() string {
	return guuid.NewString()
}

// Decorator wraps an http.Handler with additional functionality
type Decorator func(http.Handler) http.Handler

// Decorate handler with all specified decorators
func Decorate(h http.Handler, decorators ...Decorator) http.Handler {
	// apply decorator backwards so that they are executed in declared order
	for i := len(decorators) - 1; i >= 0; i-- {
		h = decorators[i](h)
	}
	return h
}

// Timer logs the time taken processing the request
func Timer(logger zerolog.Logger) Decorator {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			h.ServeHTTP(w, r)
			logger.Debug().
				Str("url", r.URL.String()).
				Dur("elapsed", time.Since(start)).
				Msg("request served")
		})
	}
}
