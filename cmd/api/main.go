package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/attendance"
	"presence/internal/audit"
	"presence/internal/auth"
	"presence/internal/config"
	"presence/internal/geo"
	"presence/internal/httpmiddleware"
	"presence/internal/queue"
	"presence/internal/ratelimit"
	"presence/internal/session"
	"presence/internal/store"
	"presence/internal/token"
)

var submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_submissions_total",
	Help: "Attendance submissions by terminal outcome.",
}, []string{"outcome"})

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// The rotating token is worthless without its key; refuse to serve.
	if cfg.ServerSecret == "" {
		log.Fatal("SERVER_SECRET is not set")
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "presence:audit")
	}

	engine := token.New(cfg.ServerSecret, cfg.WindowSeconds)
	sessions := session.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)
	auditLog := audit.NewFeed(audit.NewRepository(db.Client), q)
	limiter := ratelimit.New(auditLog, cfg.RateLimitAttempts, cfg.RateLimitWindow)
	validator := attendance.NewValidator(engine, sessions, records, auditLog, limiter, attendance.Policy{
		SkewWindows: cfg.SkewWindows,
		LateGrace:   cfg.LateGrace,
	})

	prometheus.MustRegister(submissions)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Device-Fingerprint"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// The rotating token is read-only display state: handing it out does not
	// decide anything, since the validator recomputes it at submission time.
	r.GET("/v1/sessions/:id/token", func(c *gin.Context) {
		sessionID := c.Param("id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
			return
		}
		now := time.Now()
		if ts := c.Query("ts"); ts != "" {
			unix, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "ts must be unix seconds"})
				return
			}
			now = time.Unix(unix, 0)
		}
		window := engine.Window(now)
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{
			"session_id":         sessionID,
			"time_window":        window,
			"rotating_token":     engine.Token(sessionID, window),
			"expires_in_seconds": engine.SecondsRemaining(now),
		})
	})

	authGroup := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/attendance", func(c *gin.Context) {
		var claim attendance.Claim
		if err := c.ShouldBindJSON(&claim); err != nil {
			submissions.WithLabelValues(string(attendance.CodeMalformedRequest)).Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"accepted":   false,
				"error_code": attendance.CodeMalformedRequest,
				"message":    "invalid JSON body",
			})
			return
		}

		id := attendance.Identity{StudentID: auth.CallerID(c), IP: c.ClientIP()}
		rec, err := validator.Submit(c.Request.Context(), claim, id)
		if err != nil {
			if rej, ok := attendance.AsRejection(err); ok {
				submissions.WithLabelValues(string(rej.Code)).Inc()
				c.JSON(rej.Code.HTTPStatus(), gin.H{
					"accepted":   false,
					"error_code": rej.Code,
					"message":    rej.Message,
				})
				return
			}
			log.Printf("attendance submit failed: %v", err)
			submissions.WithLabelValues(string(attendance.CodeInternal)).Inc()
			c.JSON(http.StatusInternalServerError, gin.H{
				"accepted":   false,
				"error_code": attendance.CodeInternal,
				"message":    "internal error",
			})
			return
		}

		submissions.WithLabelValues("accepted").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"accepted":    true,
			"record_id":   rec.ID,
			"recorded_at": rec.RecordedAt,
			"status":      rec.Status,
		})
	})

	authGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			SubjectID      string    `json:"subject_id" binding:"required"`
			StartsAt       time.Time `json:"starts_at" binding:"required"`
			EndsAt         time.Time `json:"ends_at" binding:"required"`
			Latitude       float64   `json:"latitude"`
			Longitude      float64   `json:"longitude"`
			GeofenceRadius float64   `json:"geofence_radius_m"`
			Room           string    `json:"room"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.StartsAt.Before(req.EndsAt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "starts_at must be before ends_at"})
			return
		}
		if !geo.ValidCoordinates(req.Latitude, req.Longitude) || req.GeofenceRadius < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geofence"})
			return
		}

		created, err := sessions.Create(c.Request.Context(), session.Session{
			SubjectID:      req.SubjectID,
			InstructorID:   auth.CallerID(c),
			StartsAt:       req.StartsAt,
			EndsAt:         req.EndsAt,
			Latitude:       req.Latitude,
			Longitude:      req.Longitude,
			GeofenceRadius: req.GeofenceRadius,
			Room:           req.Room,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	authGroup.POST("/sessions/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		switch req.Status {
		case session.StatusScheduled, session.StatusActive, session.StatusEnded, session.StatusCancelled:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		if err := sessions.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
	})

	authGroup.GET("/sessions", func(c *gin.Context) {
		limit, offset := pageParams(c, 50)
		list, err := sessions.List(c.Request.Context(), c.Query("instructor_id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	authGroup.GET("/sessions/:id/records", func(c *gin.Context) {
		limit, offset := pageParams(c, 200)
		list, err := records.ListBySession(c.Request.Context(), c.Param("id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": list})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// pageParams reads limit/offset from the query string. The limit is capped at
// maxLimit so a client cannot request an unbounded page; junk or non-positive
// values fall back to the cap.
func pageParams(c *gin.Context, maxLimit int) (limit, offset int) {
	limit = maxLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed < maxLimit {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
