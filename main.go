package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reservation-service/apperrors"
	"reservation-service/controllers"
	"reservation-service/database"
	"reservation-service/logger"
	"reservation-service/middleware"
	aws_pkg "reservation-service/pkg/aws"
	"reservation-service/pkg/metrics"
	"reservation-service/policy"
	"reservation-service/repository"
	"reservation-service/routes"
	"reservation-service/services"
	"reservation-service/waitlist"
)

const serviceName = "reservation-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	zapLogger, err := logger.New(cfg.Env)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer zapLogger.Sync()

	// --- Database ---
	if err := database.Connect(cfg.Postgres, zapLogger); err != nil {
		zapLogger.Fatal("DB connection failed", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Redis connection failed", zap.Error(err))
	}

	// --- AWS setup (non-fatal: the service runs without events or metrics) ---
	var (
		publisher     aws_pkg.SNSPublisher
		metricsClient *aws_pkg.MetricsClient
		awsCfg        sdkaws.Config
		awsReady      bool
	)
	if awsCfg, err = aws_pkg.LoadAWSConfig(context.Background()); err != nil {
		zapLogger.Warn("AWS config unavailable, events and metrics disabled", zap.Error(err))
	} else {
		awsReady = true
		publisher = aws_pkg.NewBreakerPublisher(aws_pkg.NewSNSClient(awsCfg), 5, 30*time.Second, zapLogger)
		metricsClient = aws_pkg.NewMetricsClient(awsCfg, "ReservationService", cfg.CloudWatchEnabled)
	}

	promRecorder := metrics.NewPromRecorder("reservation")
	recorder := services.MultiRecorder(metricsClient, promRecorder)

	// --- Dependency injection ---
	rules := policy.DefaultRules()
	rules.DailyRate = cfg.DailyRate
	rules.RefundCapAtPrice = cfg.RefundCapAtPrice
	engine := policy.NewEngine(rules)

	store := repository.NewGormStore(database.DB, cfg.LockTimeout)
	queue := waitlist.NewRedisQueue(redisClient)

	reservationService := services.NewReservationService(store, queue, engine, recorder, services.ReservationConfig{
		ConflictRetries:  cfg.ConflictRetries,
		DefaultQueueDays: cfg.DefaultQueueDays,
	}, zapLogger)
	customerService := services.NewCustomerService(store, nil, zapLogger)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     middleware.AllowedOrigins(os.Getenv("ALLOWED_ORIGINS")),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// CloudWatch HTTP metrics middleware
	r.Use(func(c *gin.Context) {
		if !metricsClient.IsEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		go func(path, method string, status int, dur time.Duration) {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dims := map[string]string{"Service": serviceName, "Method": method, "Path": path}
			_ = metricsClient.RecordCount(mctx, aws_pkg.MetricHTTPRequests, dims)
			_ = metricsClient.RecordLatency(mctx, aws_pkg.MetricHTTPLatency, dur, dims)
			if status >= 400 {
				_ = metricsClient.RecordCount(mctx, aws_pkg.MetricHTTPErrors, dims)
			}
		}(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	})

	r.Use(logger.RequestLogger(zapLogger))
	r.Use(apperrors.ErrorMiddleware())

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	limiter := middleware.NewRateLimiter(rate.Every(time.Minute/60), 20)
	routes.RegisterRoutes(r, routes.Controllers{
		Reservations: controllers.NewReservationController(reservationService),
		Customers:    controllers.NewCustomerController(customerService),
		Admin:        controllers.NewAdminController(reservationService),
	}, middleware.AuthMiddleware([]byte(cfg.JWTSecret)), limiter)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})
	r.GET("/metrics", gin.WrapH(promRecorder.Handler()))

	// --- Background workers ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	relay := services.NewOutboxRelay(store, publisher, cfg.ReservationSNSTopicARN, cfg.OutboxInterval, recorder, zapLogger)
	reminders := services.NewReminderJob(store, 24*time.Hour, cfg.ReminderInterval, zapLogger)

	workers.Add(3)
	go func() {
		defer workers.Done()
		limiter.RunCleanup(workerCtx, 5*time.Minute)
	}()
	go func() {
		defer workers.Done()
		relay.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		reminders.Run(workerCtx)
	}()

	if awsReady && cfg.PromotionQueueURL != "" {
		consumer := aws_pkg.NewSQSConsumer(awsCfg, cfg.PromotionQueueURL, zapLogger)
		promotions := services.NewPromotionConsumer(reservationService, zapLogger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.StartPolling(workerCtx, promotions.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("Promotion consumer stopped", zap.Error(err))
			}
		}()
	}

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zapLogger.Info("Reservation Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Initiating graceful shutdown...")
	httpShutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		zapLogger.Error("Server shutdown error", zap.Error(err))
	}

	stopWorkers()
	workers.Wait()

	if err := redisClient.Close(); err != nil {
		zapLogger.Error("Redis close error", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		zapLogger.Error("Database close error", zap.Error(err))
	}

	zapLogger.Info("Reservation Service stopped gracefully")
}
