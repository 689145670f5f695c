package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gasparian/ann-clustering-go/annbench"
	"github.com/gasparian/ann-clustering-go/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	maxBodySize     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

var (
	helloMessage = getHelloMessage()

	unknownMethodErr = errors.New("unknown search method")
	badVectorErr     = errors.New("vector components must be in [0, 255]")
)

// Stats describes the served dataset
type Stats struct {
	Items     int      `json:"items"`
	Dimension int      `json:"dimension"`
	Methods   []string `json:"methods"`
}

// Server answers knn and range queries over the loaded dataset
type Server struct {
	ds        *common.Dataset
	searchers map[string]annbench.Searcher
	logger    zerolog.Logger
	server    *http.Server
}

// New registers searchers by their lower-cased names
func New(addr string, ds *common.Dataset, searchers []annbench.Searcher, logger zerolog.Logger) *Server {
	s := &Server{
		ds:        ds,
		searchers: make(map[string]annbench.Searcher, len(searchers)),
		logger:    logger,
	}
	for _, sr := range searchers {
		s.searchers[strings.ToLower(sr.Name())] = sr
	}

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return common.Decorate(next, common.Timer(logger))
	})
	r.HandleFunc("/", s.healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/knn", s.knn).Methods(http.MethodPost)
	r.HandleFunc("/range", s.rangeSearch).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(http.StatusText(http.StatusNotImplemented)))
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until ctx is done or the server fails
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.server.Addr).Msg("serving queries")
		errCh <- s.server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) methods() []string {
	names := make([]string, 0, len(s.searchers))
	for name := range s.searchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(helloMessage)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Stats{
		Items:     s.ds.Len(),
		Dimension: s.ds.Dim(),
		Methods:   s.methods(),
	})
}

func (s *Server) knn(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "knn", func(sr annbench.Searcher, vec []byte, req common.RequestData) ([]common.Neighbor, error) {
		n := req.N
		if n == 0 {
			n = 1
		}
		if n < 0 {
			return nil, common.NewConfigError("n", req.N, "must be a positive integer")
		}
		return sr.KNN(vec, n), nil
	})
}

func (s *Server) rangeSearch(w http.ResponseWriter, r *http.Request) {
	s.query(w, r, "range", func(sr annbench.Searcher, vec []byte, req common.RequestData) ([]common.Neighbor, error) {
		if req.Radius <= 0 {
			return nil, common.NewConfigError("radius", req.Radius, "must be positive")
		}
		return sr.RangeSearch(vec, int(req.Radius)), nil
	})
}

type searchFunc func(sr annbench.Searcher, vec []byte, req common.RequestData) ([]common.Neighbor, error)

func (s *Server) query(w http.ResponseWriter, r *http.Request, name string, search searchFunc) {
	var req common.RequestData
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.fail(w, name, http.StatusBadRequest, err)
		return
	}
	sr, ok := s.searchers[strings.ToLower(req.Method)]
	if !ok {
		s.fail(w, name, http.StatusBadRequest, fmt.Errorf("%w: %q", unknownMethodErr, req.Method))
		return
	}
	vec, err := toBytes(req.Vec)
	if err == nil {
		err = s.ds.CheckVector(vec)
	}
	if err != nil {
		s.fail(w, name, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	neighbors, err := search(sr, vec, req)
	if err != nil {
		s.fail(w, name, http.StatusBadRequest, err)
		return
	}
	elapsed := time.Since(start)

	records := make([]common.NeighborsRecord, len(neighbors))
	for i, nb := range neighbors {
		records[i] = common.NeighborsRecord{ID: nb.ID, Dist: float64(nb.Distance)}
	}
	writeJSON(w, http.StatusOK, common.ResponseData{
		Results:   records,
		Message:   sr.Name(),
		ElapsedMs: float64(elapsed.Microseconds()) / 1000,
	})
}

func (s *Server) fail(w http.ResponseWriter, name string, status int, err error) {
	s.logger.Error().Err(err).Str("handler", name).Msg("bad request")
	writeJSON(w, status, common.ResponseData{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func toBytes(vec []int) ([]byte, error) {
	res := make([]byte, len(vec))
	for i, v := range vec {
		if v < 0 || v > 255 {
			return nil, badVectorErr
		}
		res[i] = byte(v)
	}
	return res, nil
}

// getHelloMessage forms a compact json description of the api
func getHelloMessage() []byte {
	helloMessage := []byte(`{
		"methods": {
			"GET": {
				"/": "this message",
				"/stats": "number of items, dimension and available search methods"
			},
			"POST": {
				"/knn": "{method, vec, n}: returns ids and distances of the n nearest items",
				"/range": "{method, vec, radius}: returns ids and distances of the items strictly inside the radius"
			}
		}
	}`)
	// NOTE: it's more convinient to update the text message by hand and then compact it
	var raw map[string]interface{}
	if err := json.Unmarshal(helloMessage, &raw); err != nil {
		return []byte("")
	}
	out, _ := json.Marshal(raw)
	return out
}
