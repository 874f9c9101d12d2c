// Package api exposes the recommendation pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
	"unipal-workers/internal/pipeline"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type PipelineRunner interface {
	Run(ctx context.Context, s *pipeline.Session) (models.ApplicationState, error)
}

type StudentRepository interface {
	Get(ctx context.Context, contact string) (models.StudentProfile, error)
	Clear(ctx context.Context) (int64, error)
}

type SnapshotClearer interface {
	Clear() error
}

// Options wires the server. When Runner is nil, Unavailable explains why
// and the recommendation route answers 503.
type Options struct {
	Runner         PipelineRunner
	Unavailable    error
	Students       StudentRepository
	Snapshot       SnapshotClearer
	ExportDir      string
	AllowedOrigins []string
	Logger         logger.Logger
}

type Server struct {
	opts   Options
	router *gin.Engine
	logger logger.Logger
}

func NewServer(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:   opts,
		router: gin.New(),
		logger: logger.OrNop(opts.Logger).WithFields(map[string]interface{}{"component": "api"}),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	s.router.Use(gin.Recovery(), s.requestLogger())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	v1.POST("/recommendations", s.recommend)
	v1.GET("/students/:contact", s.getStudent)
	v1.DELETE("/students", s.clearStudents)
	v1.GET("/documents/checklist", s.checklist)

	return s
}

// Handler returns the router for http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request handled", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}
