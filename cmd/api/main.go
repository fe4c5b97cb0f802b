package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
	"attendtrack/internal/cache"
	"attendtrack/internal/clock"
	"attendtrack/internal/config"
	"attendtrack/internal/httpmiddleware"
	"attendtrack/internal/metrics"
	"attendtrack/internal/queue"
	"attendtrack/internal/report"
	"attendtrack/internal/scope"
	"attendtrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	var (
		db       *store.DB
		repo     attendance.Store
		tokens   refreshTokenStore
		memStore *attendance.MemStore
	)
	if cfg.StoreBackend == "memory" {
		memStore = attendance.NewMemStore()
		repo = memStore
		tokens = noopTokenStore{}
		log.Println("using in-memory store (dev mode)")
	} else {
		var err error
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pgRepo := attendance.NewRepository(db.Client)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		repo = pgRepo
		tokens = pgRepo
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendtrack:checkins")
	}

	reports := report.NewService(report.NewAggregator(repo), cache.New[[]report.AggregatedStat](nil), cfg.ReportCacheTTL)
	checkins := attendance.NewService(repo, clock.System{}, reports)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context()) || memStore != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required,oneof=admin coach member"`
			UnitID  string `json:"unit_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pair, err := auth.Issue(req.Subject, req.Role, req.UnitID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = tokens.SaveRefreshToken(c.Request.Context(), req.Subject, pair.RefreshToken, pair.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.BearerAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			ActivityID    string `json:"activity_id" binding:"required"`
			ParticipantID string `json:"participant_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, _ := auth.ClaimsFrom(c)
		if claims.Role == auth.RoleMember && claims.Subject != req.ParticipantID {
			c.JSON(http.StatusForbidden, gin.H{"error": "participant mismatch"})
			return
		}

		res, err := checkins.CheckIn(c.Request.Context(), req.ActivityID, req.ParticipantID)
		if err != nil {
			metrics.CheckinsTotal.WithLabelValues(outcomeLabel(err)).Inc()
			writeDomainError(c, err)
			return
		}
		metrics.CheckinsTotal.WithLabelValues("success").Inc()

		evt := queue.CheckInEvent{
			RecordID:      res.Record.ID,
			ActivityID:    res.Record.ActivityID,
			ParticipantID: res.Record.ParticipantID,
			UnitID:        res.UnitID,
			Status:        string(res.Record.Status),
			When:          *res.Record.CheckedInAt,
		}
		if err := q.Publish(c.Request.Context(), evt); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusCreated, gin.H{
			"record_id": res.Record.ID,
			"status":    res.Record.Status,
			"when":      res.Record.CheckedInAt,
		})
	})

	reviewers := authGroup.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleCoach))

	reviewers.POST("/records/absences", func(c *gin.Context) {
		var req struct {
			ActivityID    string `json:"activity_id" binding:"required"`
			ParticipantID string `json:"participant_id" binding:"required"`
			Status        string `json:"status" binding:"required,oneof=absent excused"`
			Notes         string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := checkins.MarkAbsent(c.Request.Context(), req.ActivityID, req.ParticipantID, attendance.Status(req.Status), req.Notes)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"record_id": res.Record.ID, "status": res.Record.Status})
	})

	reviewers.PATCH("/records/:id", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required,oneof=present absent late excused"`
			Notes  string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := checkins.Override(c.Request.Context(), c.Param("id"), attendance.Status(req.Status), req.Notes)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record_id": rec.ID, "status": rec.Status, "notes": rec.Notes})
	})

	authGroup.GET("/reports", func(c *gin.Context) {
		sc, dr, ok := reportParams(c)
		if !ok {
			return
		}
		stats, err := reports.GetAttendanceReport(c.Request.Context(), sc, dr)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	})

	authGroup.GET("/reports/export", func(c *gin.Context) {
		sc, dr, ok := reportParams(c)
		if !ok {
			return
		}
		rows, err := reports.ExportReportRows(c.Request.Context(), sc, dr)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=attendance.csv")
		if err := report.WriteCSV(c.Writer, rows); err != nil {
			log.Printf("csv write failed: %v", err)
		}
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// reportParams resolves the caller's scope from claims and parses the
// date range. Writes the error response itself when not ok.
func reportParams(c *gin.Context) (report.Scope, report.DateRange, bool) {
	claims, _ := auth.ClaimsFrom(c)
	sc, err := scope.FromClaims(claims)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return report.Scope{}, report.DateRange{}, false
	}
	dr, err := report.NewDateRange(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return report.Scope{}, report.DateRange{}, false
	}
	return sc, dr, true
}

// writeDomainError maps domain errors to HTTP statuses; anything else is
// an opaque store failure.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrWindowNotOpen), errors.Is(err, attendance.ErrWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "aggregation timed out"})
	default:
		log.Printf("store error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, attendance.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, attendance.ErrWindowNotOpen):
		return "window_not_open"
	case errors.Is(err, attendance.ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, attendance.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// refreshTokenStore is the slice of the repository the register endpoint
// needs; the memory backend skips persistence.
type refreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error
}

type noopTokenStore struct{}

func (noopTokenStore) SaveRefreshToken(context.Context, string, string, time.Time) error {
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
