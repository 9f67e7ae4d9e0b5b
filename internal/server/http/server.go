// Package http exposes the vault service over a JSON HTTP API.
package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

// Server ties the gin router to the vault service.
type Server struct {
	vault  VaultAPI
	db     *sql.DB
	config *config.Config
	logger logging.Logger
	srv    *http.Server
}

func NewServer(vault VaultAPI, db *sql.DB, cfg *config.Config, logger logging.Logger) *Server {
	s := &Server{
		vault:  vault,
		db:     db,
		config: cfg,
		logger: logger.With("module", "http_server"),
	}

	s.srv = &http.Server{
		Addr:              cfg.EndpointAddrHTTP,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	ginprometheus.NewPrometheus("vault").Use(r)

	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthz)

	api := r.Group("/api/vault", authMiddleware([]byte(s.config.SecretKey)))
	{
		api.POST("/folders", s.createFolder)

		api.GET("/items", s.getItems)
		api.GET("/items/:id", s.getItem)
		api.PATCH("/items/:id/rename", s.renameItem)
		api.PATCH("/items/:id/move", s.moveItem)
		api.DELETE("/items/:id", s.deleteItem)

		api.POST("/items/:id/share", s.shareItem)
		api.POST("/items/:id/unshare", s.unshareItem)
		api.GET("/shared-with-me", s.listSharedWithMe)

		api.POST("/uploads", s.getUploadSignedURL)
		api.POST("/files", s.addVaultFile)
		api.GET("/items/:id/download", s.getDownloadSignedURL)
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info(context.Background(), "http server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
