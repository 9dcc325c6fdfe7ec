package server

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/session"
	"github.com/autopeer-io/panellink/pkg/log"
	"github.com/autopeer-io/panellink/pkg/options"
)

// Backend is what the status endpoints expose.
type Backend interface {
	Snapshot() session.Status
	ReadyCheck() iter.Seq[core.StatusReportItem]
	RequestDriver(ctx context.Context) error
}

var _ Backend = (*session.Controller)(nil)

// ReadyReport is the /readyz response body.
type ReadyReport struct {
	Ready bool                    `json:"ready"`
	Items []core.StatusReportItem `json:"items"`
}

type HTTPServer struct {
	server  *http.Server
	options *options.HttpOptions
	backend Backend
}

func NewHTTPServer(opts *options.HttpOptions, backend Backend) *HTTPServer {
	s := &HTTPServer{options: opts, backend: backend}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: opts.Timeout,
		WriteTimeout:      opts.Timeout,
	}
	return s
}

// Handler returns the router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/driver/request", s.requestDriver).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *HTTPServer) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz reports 503 when any finding is an error. ?limit=N stops after N
// findings without running the remaining checks.
func (s *HTTPServer) readyz(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	report := ReadyReport{Ready: true, Items: []core.StatusReportItem{}}
	if limit != 0 {
		for item := range s.backend.ReadyCheck() {
			report.Items = append(report.Items, item)
			if item.Severity == core.SeverityError {
				report.Ready = false
			}
			if limit > 0 && len(report.Items) >= limit {
				break
			}
		}
	}

	code := http.StatusOK
	if !report.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *HTTPServer) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

func (s *HTTPServer) requestDriver(w http.ResponseWriter, r *http.Request) {
	err := s.backend.RequestDriver(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, s.backend.Snapshot())
	case errors.Is(err, core.ErrTransportAbsent):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error(err, "Driver request failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}

func (s *HTTPServer) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.Timeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
