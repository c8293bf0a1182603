// Package gateway implements the stateless HTTP request gateway: auth,
// rate limiting, routing to the table registry, and post-commit fan-out to
// the identity store, hand archive, and collusion accumulator.
package gateway

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentpoker/internal/archive"
	"agentpoker/internal/collusion"
	"agentpoker/internal/identity"
	"agentpoker/internal/metrics"
	"agentpoker/internal/table"
)

// Config holds the gateway's wiring and tunables.
type Config struct {
	AdminKey      string
	StartingChips int
}

// Server holds every dependency the HTTP handlers need.
type Server struct {
	cfg        Config
	identity   identity.Store
	tables     *table.Registry
	archive    archive.Store
	collusion  *collusion.Accumulator
	limiters   *limiters
	engine     *gin.Engine
}

// NewServer wires the gateway's dependencies into a *gin.Engine. archiveStore
// and collusionAcc may be nil; with a nil accumulator /collusion lists no
// pairs and /stats omits the flagged-pair count. The server makes no
// post-commit writes itself: those run in the registry's HandCommitHook
// (see NewHandCommitHook).
func NewServer(cfg Config, identityStore identity.Store, tables *table.Registry, archiveStore archive.Store, collusionAcc *collusion.Accumulator) *Server {
	s := &Server{
		cfg:       cfg,
		identity:  identityStore,
		tables:    tables,
		archive:   archiveStore,
		collusion: collusionAcc,
		limiters:  newLimiters(),
	}
	s.engine = s.buildRouter()
	return s
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", s.limiters.rateLimitMiddleware(classRegister, byIP), s.handleRegister)
	r.GET("/table/:id/spectate", s.limiters.rateLimitMiddleware(classPublic, byIP), s.handleSpectate)
	r.GET("/table/:id/history", s.limiters.rateLimitMiddleware(classPublic, byIP), s.handlePublicHistory)
	r.GET("/leaderboard", s.limiters.rateLimitMiddleware(classPublic, byIP), s.handleLeaderboard)
	r.GET("/stats", s.limiters.rateLimitMiddleware(classPublic, byIP), s.handleStats)
	r.GET("/collusion", s.limiters.rateLimitMiddleware(classPublic, byIP), s.handleCollusion)

	auth := r.Group("/", authMiddleware(s.identity))
	auth.GET("/me", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleMe)
	auth.POST("/rebuy", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleRebuy)
	auth.POST("/table/join", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleJoin)
	auth.POST("/table/leave", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleLeave)
	auth.POST("/table/sit-out", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleSitOut)
	auth.POST("/table/sit-in", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleSitIn)
	auth.GET("/table/state", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleState)
	auth.POST("/table/act", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleAct)
	auth.POST("/table/chat", s.limiters.rateLimitMiddleware(classChat, byAgent), s.handleChat)
	auth.GET("/table/history", s.limiters.rateLimitMiddleware(classAuthenticated, byAgent), s.handleHistory)

	admin := r.Group("/table", adminMiddleware(s.cfg.AdminKey))
	admin.POST("/:id/reset", s.handleReset)

	return r
}

// requestLogger emits one line per request with method/path/status/latency
// and feeds the request-duration histogram.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()
		log.Printf("method=%s path=%s status=%d latency=%s", c.Request.Method, c.Request.URL.Path, status, elapsed)
		metrics.RequestDuration.WithLabelValues(c.FullPath(), strconv.Itoa(status)).Observe(elapsed.Seconds())
	}
}

// Shutdown stops all table actors and releases server-owned resources.
// The caller is responsible for shutting down the underlying http.Server.
func (s *Server) Shutdown(ctx context.Context) {
	s.tables.StopAll()
}
