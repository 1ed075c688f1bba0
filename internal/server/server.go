package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/crypto"
	"github.com/Subho98799/nagar/internal/handler"
	"github.com/Subho98799/nagar/internal/middleware"
	"github.com/Subho98799/nagar/internal/service"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Reports  service.ReportService
	Reviewer service.ReviewerService
	Auth     service.AuthService
	Hasher   *crypto.IdentityHasher
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	log    *logrus.Logger
	logger *zap.Logger
}

func NewServer(addr string, deps Deps, log *logrus.Logger, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.AccessLog(log, deps.Hasher))

	handler.RegisterRoutes(router,
		handler.NewReportHandler(deps.Reports, deps.Hasher, logger),
		handler.NewReviewerHandler(deps.Reviewer, logger),
		middleware.AuthMiddleware(deps.Auth, logger),
	)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:    log,
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Server exited")
	return nil
}
