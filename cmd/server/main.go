package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vietparty/room-server/internal/config"
	"github.com/vietparty/room-server/internal/gateway"
	"github.com/vietparty/room-server/internal/karaoke"
	"github.com/vietparty/room-server/internal/loto"
	"github.com/vietparty/room-server/internal/youtube"
	"github.com/vietparty/room-server/pkg/apperr"
	"github.com/vietparty/room-server/pkg/database"
	"github.com/vietparty/room-server/pkg/events"
	"github.com/vietparty/room-server/pkg/redisstore"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found")
	}

	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis mirrors committed queue state and caches search results. The
	// in-memory registries stay authoritative, so a missing Redis only costs
	// durability.
	var store *redisstore.Store
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logrus.WithError(err).Warn("redis unreachable, running without queue mirror")
		redisClient = nil
	} else {
		store = redisstore.NewStore(redisClient)
	}
	cancel()

	// Kafka carries room events to the history recorder.
	kafkaClient := events.NewKafkaClient(
		strings.Split(cfg.KafkaBrokers, ","),
		cfg.KafkaTopic,
		cfg.KafkaGroupID,
	)

	// MySQL keeps played-song history and the room audit trail.
	db, err := database.NewMySQLDB(
		cfg.MySQLHost,
		cfg.MySQLPort,
		cfg.MySQLUser,
		cfg.MySQLPassword,
		cfg.MySQLDatabase,
	)
	if err != nil {
		logrus.WithError(err).Warn("mysql unreachable, running without history")
		db = nil
	}

	// Room services share one hub so fanout order matches commit order.
	hub := gateway.NewHub()
	fanout := gateway.NewFanout(hub)

	var queueStore karaoke.QueueStore
	if store != nil {
		queueStore = store
	}
	karaokeSvc := karaoke.NewService(cfg.RoomTTL, fanout, queueStore, kafkaClient)
	lotoSvc := loto.NewService(cfg.RoomTTL, fanout, kafkaClient)

	go karaokeSvc.Registry().SweepLoop(ctx, cfg.SweepInterval)
	go lotoSvc.Registry().SweepLoop(ctx, cfg.SweepInterval)

	if db != nil {
		recorder := events.NewRecorder(kafkaClient, db)
		go recorder.Run(ctx)
	}

	limiter := gateway.NewRateLimiter(cfg.SocketRateLimitWindow, cfg.SocketRateLimitMax)
	gw := gateway.New(hub, karaokeSvc, lotoSvc, limiter)

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	if cfg.YouTubeAPIKey != "" {
		var cache youtube.SearchCache
		if store != nil {
			cache = store
		}
		youtube.NewHandler(youtube.NewClient(cfg.YouTubeAPIKey), cache).RegisterRoutes(v1)
	} else {
		logrus.Warn("YOUTUBE_API_KEY not set, search endpoint disabled")
	}

	// Read-only room snapshot for page loads before the socket connects.
	// Lô tô boards never appear here.
	v1.GET("/rooms/:code", func(c *gin.Context) {
		code := c.Param("code")
		if snap, err := karaokeSvc.Snapshot(code); err == nil {
			c.JSON(http.StatusOK, gin.H{"variant": "karaoke", "snapshot": snap})
			return
		}
		if snap, err := lotoSvc.Snapshot(code, ""); err == nil {
			c.JSON(http.StatusOK, gin.H{"variant": "loto", "snapshot": snap})
			return
		}
		c.JSON(http.StatusNotFound, apperr.ErrRoomNotFound)
	})

	if db != nil {
		v1.GET("/rooms/:code/history", func(c *gin.Context) {
			entries, err := db.GetSongHistory(c.Param("code"), 50)
			if err != nil {
				c.JSON(http.StatusInternalServerError, apperr.ErrInternal)
				return
			}
			c.JSON(http.StatusOK, gin.H{"history": entries})
		})
		v1.GET("/rooms/:code/audit", func(c *gin.Context) {
			entries, err := db.GetRoomAudit(c.Param("code"), 100)
			if err != nil {
				c.JSON(http.StatusInternalServerError, apperr.ErrInternal)
				return
			}
			c.JSON(http.StatusOK, gin.H{"audit": entries})
		})
	}

	router.GET("/ws", gw.HandleWebSocket)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("forced shutdown")
	}
	kafkaClient.Close()
}
