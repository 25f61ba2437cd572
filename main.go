package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flowdeck/flowdeck/backend/collab-service/handlers"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/lock"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/presence"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/room"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/collab/session"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/config"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/database"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/oidc"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/tokens"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/users"
	wfhandler "github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/handler"
	wfservice "github.com/flowdeck/flowdeck/backend/collab-service/internal/workflow/service"
	"github.com/flowdeck/flowdeck/backend/collab-service/internal/ws"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/logger"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/metrics"
	"github.com/flowdeck/flowdeck/backend/collab-service/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: oidc=%v mongo=%v redis=%v", cfg.OIDC.IssuerURL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple; production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Redis: backs the distributed lock manager and the optional rate limiter.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err == nil {
			redisClient = client
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Lock manager: Redis when available so locks are shared across replicas,
	// otherwise in-process.
	var lockMgr lock.Manager
	if redisClient != nil {
		lockMgr = lock.NewRedisManager(redisClient, "lock:", cfg.Collab.LockTTL)
		logger.Infof("edit locks: redis, ttl=%s", cfg.Collab.LockTTL)
	} else {
		lockMgr = lock.NewMemoryManager(cfg.Collab.LockTTL)
		logger.Infof("edit locks: in-memory, ttl=%s", cfg.Collab.LockTTL)
	}

	// MongoDB: the session directory's system of record plus workflow and
	// user storage. Falls back to in-memory repositories for development.
	var mongoClient *mongo.Client
	var sessionRepo session.Repository = session.NewMemoryRepository()
	wfSvc := wfservice.NewMemoryService()
	userSvc := users.NewService(users.NewMemoryUserRepository())
	if cfg.MongoDB.URI != "" {
		// Retry/backoff when connecting to MongoDB to tolerate startup races
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Warnf("could not connect to MongoDB after %d attempts, using in-memory stores: %v", maxAttempts, errConn)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			db := mongoClient.Database(cfg.MongoDB.Database)
			sessionRepo = session.NewMongoRepository(db.Collection("collab_sessions"))
			wfSvc = wfservice.NewMongoService(db.Collection("workflows"))
			userSvc = users.NewService(users.NewMongoUserRepository(db.Collection("users")))
			logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
		}
	}

	// Token verifier: OIDC issuer when configured, shared-secret HMAC as the
	// fallback, unverified claims only under explicit opt-in.
	var verifier middleware.Verifier
	if cfg.OIDC.IssuerURL != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.IssuerURL, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.JWT.Secret != "" {
		verifier = tokens.NewHMACVerifier(cfg.JWT.Secret)
		logger.Infof("token verification: HMAC shared secret")
	}
	if verifier == nil {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
			logger.Warn("enabling insecure token verifier (integration mode)")
			verifier = oidc.NewInsecureVerifier()
		} else {
			logger.Fatalf("no token verifier available: set OIDC_ISSUER_URL or JWT_SECRET (or ALLOW_INSECURE_TOKEN=true for local testing)")
		}
	}

	// Collaboration core
	reg := presence.NewRegistry()
	rooms := room.NewBroadcaster()
	sessionSvc := session.NewService(sessionRepo, lockMgr, reg, rooms, wfSvc, cfg.Collab.SessionTTL, cfg.Collab.MaxParticipants)

	wsHandler := ws.NewHandler(verifier, wfSvc, sessionSvc, lockMgr, reg, rooms, userSvc)
	r.GET("/ws", wsHandler.HandleConnection)

	handlers.RegisterSessionRoutes(r, verifier, handlers.NewSessionHandler(sessionSvc, reg))
	wfhandler.RegisterWorkflowRoutes(r, verifier, wfSvc)
	handlers.RegisterSwagger(r)
	handlers.RegisterDevAuth(r, cfg)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when configured dependencies answered at startup
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}
		deps["verifier"] = verifier != nil
		if cfg.MongoDB.URI != "" {
			deps["mongo"] = mongoClient != nil
			ready = ready && deps["mongo"]
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil
			ready = ready && deps["redis"]
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// background sweeper: ends sessions past their TTL and reclaims expired
	// in-memory locks
	go func() {
		ticker := time.NewTicker(cfg.Collab.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if ended, err := sessionSvc.ExpireSweep(ctx); err != nil {
				logger.Errorf("expire sweep: %v", err)
			} else if ended > 0 {
				logger.Infof("expire sweep ended %d session(s)", ended)
			}
			if _, err := lockMgr.SweepExpired(ctx); err != nil {
				logger.Errorf("lock sweep: %v", err)
			}
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting collab service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
