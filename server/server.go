// Package server - HTTP API for detection and label translation.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/lingolens/detector"
	"github.com/nvr-ai/lingolens/models"
	"github.com/nvr-ai/lingolens/monitor"
	"github.com/nvr-ai/lingolens/translate"
)

const (
	// DefaultMaxUploadBytes caps uploads when no limit is configured.
	DefaultMaxUploadBytes = 10 << 20
	shutdownTimeout       = 10 * time.Second
)

// Options holds the collaborators of a Server.
type Options struct {
	// Detector runs inference and post-processing. Required.
	Detector *detector.Detector
	// Labels names class indices. Required.
	Labels *models.LabelTable
	// Translator translates labels. Nil disables translation.
	Translator *translate.LabelTranslator
	// Languages is the list served by /api/languages.
	Languages []translate.Language
	// DefaultLanguage is used when a request names no language.
	DefaultLanguage string
	// MaxUploadBytes caps the size of an uploaded image.
	MaxUploadBytes int64
	Metrics        *monitor.Metrics
	Logger         *zap.Logger
}

// Server serves the lingolens HTTP API.
type Server struct {
	detector        *detector.Detector
	labels          *models.LabelTable
	translator      *translate.LabelTranslator
	languages       []translate.Language
	defaultLanguage string
	maxUploadBytes  int64
	metrics         *monitor.Metrics
	logger          *zap.Logger
	router          *gin.Engine
}

// New creates a Server and registers its routes.
//
// Arguments:
//   - opts: The collaborators.
//
// Returns:
//   - *Server: The server.
//   - error: An error if a required collaborator is missing.
//
// Example Usage:
// ```go
//
//	srv, err := server.New(server.Options{Detector: d, Labels: labels})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.Run(ctx, ":8080")
//
// ```
func New(opts Options) (*Server, error) {
	if opts.Detector == nil {
		return nil, errors.New("server requires a detector")
	}
	if opts.Labels == nil {
		return nil, errors.New("server requires a label table")
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.Languages) == 0 {
		opts.Languages = translate.DefaultTranslationLanguages()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = translate.DefaultSourceLanguage
	}

	s := &Server{
		detector:        opts.Detector,
		labels:          opts.Labels,
		translator:      opts.Translator,
		languages:       append([]translate.Language(nil), opts.Languages...),
		defaultLanguage: opts.DefaultLanguage,
		maxUploadBytes:  opts.MaxUploadBytes,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	api := r.Group("/api")
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	api.POST("/detect", s.handleDetect)
	api.GET("/languages", s.handleLanguages)
	api.GET("/translate/:source/:target/:text", s.handleTranslate)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}
	return nil
}
