package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dex-trader-sol/internal/metrics"
	"dex-trader-sol/pkg/logger"
)

// MetricsService 暴露 /metrics
type MetricsService struct {
	server *http.Server
}

func NewMetricsService(addr string) *MetricsService {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w)
	})
	return &MetricsService{
		server: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           mux,
		},
	}
}

func (s *MetricsService) Start() {
	logger.Infof("[MetricsService] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[MetricsService] ListenAndServe: %v", err)
	}
}

func (s *MetricsService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warnf("[MetricsService] shutdown: %v", err)
	}
}
