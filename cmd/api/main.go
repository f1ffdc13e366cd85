package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/faceclient"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/notify"
	"campusattend/internal/queue"
	"campusattend/internal/report"
	"campusattend/internal/store"
	"campusattend/internal/timeutil"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := attendance.NewRepository(db)
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPassword, cfg.NotifyRecipient)

	var redisClient *store.Redis
	var notifier attendance.Notifier
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q := queue.NewRedisQueue(redisClient.Client, "campusattend:notifications")
		notifier = notify.NewQueueNotifier(q)
	} else if mailer.Configured() {
		notifier = notify.NewAudited(mailer, repo)
	} else {
		log.Println("notifications disabled (no queue backend and SMTP not configured)")
	}

	svc := attendance.NewService(repo, face, notifier, cfg.LateHour, cfg.MatchTimeout, cfg.StoreTimeout)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewIPRateLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		resp := gin.H{"status": "ok", "db": dbHealthy}
		if redisClient != nil {
			redisHealthy := redisClient.Healthy(c.Request.Context())
			resp["redis"] = redisHealthy
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if !cfg.FaceSkip {
			faceHealthy := face.Health(c.Request.Context()) == nil
			resp["face"] = faceHealthy
			if !faceHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	})

	r.POST("/api/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Username != cfg.OperatorUser || req.Password != cfg.OperatorPass {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		tokens, err := auth.Issue(req.Username, "operator", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = repo.SaveRefreshToken(c.Request.Context(), req.Username, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	r.POST("/api/auth/revoke", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := repo.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	})

	api := r.Group("/api", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Register a student: multipart form with student_id, name, email,
	// course and an optional face photo to enroll.
	api.POST("/students", func(c *gin.Context) {
		var req struct {
			StudentID string `form:"student_id" binding:"required"`
			Name      string `form:"name" binding:"required"`
			Email     string `form:"email"`
			Course    string `form:"course"`
		}
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var photo []byte
		filename := ""
		if file, header, ferr := c.Request.FormFile("photo"); ferr == nil {
			defer file.Close()
			data, rerr := io.ReadAll(file)
			if rerr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
				return
			}
			photo = data
			filename = header.Filename
		}

		st, err := svc.Register(c.Request.Context(), req.StudentID, req.Name, req.Email, req.Course, photo, filename)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		// Keep a local reference copy so the face can be re-enrolled later.
		if len(photo) > 0 {
			dir := filepath.Join(cfg.UploadDir, "photos")
			if err := os.MkdirAll(dir, 0o755); err == nil {
				name := attendance.IdentityLabel(req.StudentID, req.Name) + filepath.Ext(filename)
				if werr := os.WriteFile(filepath.Join(dir, name), photo, 0o644); werr != nil {
					log.Printf("photo copy for %s failed: %v", req.StudentID, werr)
				}
			}
		}
		c.JSON(http.StatusCreated, st)
	})

	api.GET("/students", func(c *gin.Context) {
		students, err := repo.ListStudents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if students == nil {
			students = []attendance.Student{}
		}
		c.JSON(http.StatusOK, students)
	})

	api.GET("/students/:id", func(c *gin.Context) {
		st, err := repo.GetStudent(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if st == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	api.GET("/students/:id/notifications", func(c *gin.Context) {
		notes, err := repo.ListNotifications(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if notes == nil {
			notes = []attendance.Notification{}
		}
		c.JSON(http.StatusOK, notes)
	})

	// Session summary for one student; ?email=1 also mails it to the
	// configured recipient.
	api.GET("/students/:id/summary", func(c *gin.Context) {
		sum, err := svc.Summarize(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if c.Query("email") == "1" {
			if !mailer.Configured() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "smtp not configured"})
				return
			}
			if err := mailer.SendSummary(c.Request.Context(), sum.StudentID, sum.Name, sum.DaysPresent, sum.Sessions, sum.TotalPretty); err != nil {
				log.Printf("summary email failed: %v", err)
			}
		}
		c.JSON(http.StatusOK, sum)
	})

	// Recognize a captured frame and record the attendance event.
	api.POST("/recognize", func(c *gin.Context) {
		file, header, err := c.Request.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		defer file.Close()
		photo, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read photo"})
			return
		}

		res, err := svc.Recognize(c.Request.Context(), photo, header.Filename)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	api.GET("/attendance", func(c *gin.Context) {
		events, err := repo.ListAttendance(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if events == nil {
			events = []attendance.Event{}
		}
		c.JSON(http.StatusOK, events)
	})

	// Attendance report download. from/to accept "2006-01-02 15:04:05" or
	// date-only "2006-01-02"; format is pdf (default) or csv.
	api.GET("/reports", func(c *gin.Context) {
		from, err := parseRangeParam(c.Query("from"), false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
			return
		}
		to, err := parseRangeParam(c.Query("to"), true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
			return
		}

		rows, err := report.Build(c.Request.Context(), repo, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		format := c.DefaultQuery("format", "pdf")
		switch format {
		case "pdf":
			data, err := report.RenderPDF(rows)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.Header("Content-Disposition", `attachment; filename="`+report.Filename("pdf")+`"`)
			c.Data(http.StatusOK, "application/pdf", data)
		case "csv":
			data, err := report.RenderCSV(rows)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.Header("Content-Disposition", `attachment; filename="`+report.Filename("csv")+`"`)
			c.Data(http.StatusOK, "text/csv", data)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be pdf or csv"})
		}
	})

	// Memo and timetable uploads, stored on disk under the upload dir.
	api.POST("/uploads/:kind", func(c *gin.Context) {
		kind := c.Param("kind")
		if kind != "memo" && kind != "timetable" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be memo or timetable"})
			return
		}
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()

		dir := filepath.Join(cfg.UploadDir, kind+"s")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload dir: " + err.Error()})
			return
		}
		name := uuid.NewString() + filepath.Ext(header.Filename)
		dst, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, file); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"stored_as": name, "original": header.Filename})
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// statusFor maps pipeline errors to HTTP responses.
func statusFor(err error) int {
	var storageErr *attendance.StorageError
	switch {
	case errors.Is(err, attendance.ErrUnknownFace):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrMalformedIdentity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, attendance.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func parseRangeParam(value string, end bool) (time.Time, error) {
	if value == "" {
		if end {
			return time.Now(), nil
		}
		return time.Unix(0, 0), nil
	}
	if t, err := timeutil.Parse(value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
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
