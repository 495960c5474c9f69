// Package service serves the health check and prometheus metrics of a running
// simulator.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-hivesim/metrics"
)

const shutdownTimeout = 5 * time.Second

type Service struct {
	log    log.Logger
	server *http.Server
	addr   net.Addr
	done   chan struct{}
}

func New(log log.Logger) *Service {
	return &Service{log: log}
}

// Handler returns the HTTP handler serving /healthz and /metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK")) //nolint:errcheck
}

// Start listens on addr and serves in the background until Shutdown.
func (s *Service) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})
	s.log.Info("service starting", "addr", s.addr)
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving metrics", "err", err)
			metrics.RecordErrorDetails("error serving metrics", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil if the service is not started.
func (s *Service) Addr() net.Addr {
	return s.addr
}

func (s *Service) Shutdown() {
	if s.server == nil {
		return
	}
	s.log.Info("service shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	<-s.done
	s.log.Info("service stopped")
}
