// Package server exposes the indexer's read API over HTTP. Handlers are
// thin: each one builds a query, submits it to the coordinator, and encodes
// the reply. All consistency guarantees live in the coordinator.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/observability"
	"StrappedIndexer/internal/query"
	"StrappedIndexer/internal/snapshot"
)

// queryTimeout bounds how long a request waits for the coordinator. The
// coordinator answers between batches, so this only trips when it is wedged
// or drowning in events.
const queryTimeout = 5 * time.Second

// Submitter is the coordinator's query intake.
type Submitter interface {
	Submit(ctx context.Context, q query.Query) error
}

// Server is the HTTP read API.
type Server struct {
	app     Submitter
	health  *observability.HealthChecker
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates the server.
func New(app Submitter, health *observability.HealthChecker, logger zerolog.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		app:     app,
		health:  health,
		logger:  logger,
		metrics: metrics,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/snapshot/latest", s.handleLatestOverview).Methods(http.MethodGet)
	r.HandleFunc("/account/{identity}", s.handleLatestAccount).Methods(http.MethodGet)
	r.HandleFunc("/account/{identity}/{game_id}", s.handleHistoricalAccount).Methods(http.MethodGet)
	r.HandleFunc("/historical/{game_id}", s.handleHistoricalGame).Methods(http.MethodGet)
	r.HandleFunc("/straps", s.handleAllKnownStraps).Methods(http.MethodGet)
	if s.health != nil {
		r.HandleFunc("/healthz", s.health.LivenessHandler).Methods(http.MethodGet)
		r.HandleFunc("/readyz", s.health.ReadinessHandler).Methods(http.MethodGet)
	}
	return r
}

// instrument records per-route latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.metrics == nil {
			return
		}
		route := mux.CurrentRoute(r)
		if route == nil {
			return
		}
		if tmpl, err := route.GetPathTemplate(); err == nil {
			s.metrics.QueryDuration.WithLabelValues(tmpl).Observe(time.Since(start).Seconds())
		}
	})
}

// overviewResponse pairs the overview with the height it reflects.
type overviewResponse struct {
	Snapshot    snapshot.OverviewSnapshot `json:"snapshot"`
	BlockHeight uint32                    `json:"block_height"`
}

// accountResponse pairs an account snapshot with the height it reflects.
type accountResponse struct {
	Snapshot    snapshot.AccountSnapshot `json:"snapshot"`
	BlockHeight uint32                   `json:"block_height"`
}

func (s *Server) handleLatestOverview(w http.ResponseWriter, r *http.Request) {
	const endpoint = "snapshot_latest"
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := query.NewLatestOverview()
	if err := s.app.Submit(ctx, q); err != nil {
		s.fail(w, endpoint, http.StatusServiceUnavailable, err)
		return
	}
	select {
	case reply := <-q.Reply:
		if reply == nil {
			s.notFound(w, endpoint, "no snapshot yet")
			return
		}
		s.ok(w, endpoint, overviewResponse{Snapshot: reply.Snapshot, BlockHeight: reply.Height})
	case <-ctx.Done():
		s.fail(w, endpoint, http.StatusGatewayTimeout, ctx.Err())
	}
}

func (s *Server) handleLatestAccount(w http.ResponseWriter, r *http.Request) {
	const endpoint = "account_latest"
	identity := event.Identity(mux.Vars(r)["identity"])
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := query.NewLatestAccount(identity)
	if err := s.app.Submit(ctx, q); err != nil {
		s.fail(w, endpoint, http.StatusServiceUnavailable, err)
		return
	}
	s.replyAccount(ctx, w, endpoint, q.Reply)
}

func (s *Server) handleHistoricalAccount(w http.ResponseWriter, r *http.Request) {
	const endpoint = "account_historical"
	vars := mux.Vars(r)
	identity := event.Identity(vars["identity"])
	gameID, err := parseGameID(vars["game_id"])
	if err != nil {
		s.badRequest(w, endpoint, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := query.NewHistoricalAccount(identity, gameID)
	if err := s.app.Submit(ctx, q); err != nil {
		s.fail(w, endpoint, http.StatusServiceUnavailable, err)
		return
	}
	s.replyAccount(ctx, w, endpoint, q.Reply)
}

func (s *Server) handleHistoricalGame(w http.ResponseWriter, r *http.Request) {
	const endpoint = "historical_game"
	gameID, err := parseGameID(mux.Vars(r)["game_id"])
	if err != nil {
		s.badRequest(w, endpoint, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := query.NewHistoricalGame(gameID)
	if err := s.app.Submit(ctx, q); err != nil {
		s.fail(w, endpoint, http.StatusServiceUnavailable, err)
		return
	}
	select {
	case reply := <-q.Reply:
		if reply == nil {
			s.notFound(w, endpoint, "game not archived")
			return
		}
		s.ok(w, endpoint, reply)
	case <-ctx.Done():
		s.fail(w, endpoint, http.StatusGatewayTimeout, ctx.Err())
	}
}

func (s *Server) handleAllKnownStraps(w http.ResponseWriter, r *http.Request) {
	const endpoint = "straps"
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	q := query.NewAllKnownStraps()
	if err := s.app.Submit(ctx, q); err != nil {
		s.fail(w, endpoint, http.StatusServiceUnavailable, err)
		return
	}
	select {
	case straps := <-q.Reply:
		if straps == nil {
			straps = []snapshot.StrapMetadata{}
		}
		s.ok(w, endpoint, straps)
	case <-ctx.Done():
		s.fail(w, endpoint, http.StatusGatewayTimeout, ctx.Err())
	}
}

// replyAccount waits for an account reply and encodes it. Snapshots are
// normalized so clients always see all eleven rolls.
func (s *Server) replyAccount(ctx context.Context, w http.ResponseWriter, endpoint string, replies chan *query.AccountReply) {
	select {
	case reply := <-replies:
		if reply == nil {
			s.notFound(w, endpoint, "no record for account")
			return
		}
		reply.Snapshot.Normalize()
		s.ok(w, endpoint, accountResponse{Snapshot: reply.Snapshot, BlockHeight: reply.Height})
	case <-ctx.Done():
		s.fail(w, endpoint, http.StatusGatewayTimeout, ctx.Err())
	}
}

func parseGameID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

func (s *Server) ok(w http.ResponseWriter, endpoint string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("encode response")
	}
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, "ok").Inc()
	}
}

func (s *Server) notFound(w http.ResponseWriter, endpoint, msg string) {
	writeError(w, http.StatusNotFound, msg)
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, "not_found").Inc()
	}
}

func (s *Server) badRequest(w http.ResponseWriter, endpoint string, err error) {
	writeError(w, http.StatusBadRequest, err.Error())
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint, "bad_request").Inc()
	}
}

func (s *Server) fail(w http.ResponseWriter, endpoint string, status int, err error) {
	s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("query failed")
	writeError(w, status, "query failed")
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
