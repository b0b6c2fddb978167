package finality

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blockdeep/exbrid/chain"

	log "github.com/sirupsen/logrus"
)

type StatusSource interface {
	Latest() (chain.BlockRecord, bool)
	GateState() GateState
}

type BlockStatus struct {
	Number uint64 `json:"number"`
	Hash   string `json:"hash"`
}

type StatusResponse struct {
	Latest *BlockStatus `json:"latest"`
	Gate   string       `json:"gate"`
}

func NewStatusRouter(source StatusSource, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/status", statusHandler(source)).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler(source)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

func statusHandler(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{Gate: source.GateState().String()}
		if latest, ok := source.Latest(); ok {
			resp.Latest = &BlockStatus{Number: latest.Number, Hash: latest.Hash.Hex()}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.WithError(err).Debug("Failed to write status response")
		}
	}
}

func healthHandler(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := source.GateState()
		if state != GateReady {
			http.Error(w, state.String(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(state.String()))
	}
}

// ServeStatus runs handler on addr until ctx is cancelled.
func ServeStatus(ctx context.Context, eg *errgroup.Group, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg.Go(func() error {
		log.WithField("address", addr).Info("Serving status and metrics")
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
