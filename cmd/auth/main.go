package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	postgresRepo "github.com/accounthub/auth-service/internal/adapters/db/postgres"
	redisRepo "github.com/accounthub/auth-service/internal/adapters/db/redis"
	"github.com/accounthub/auth-service/internal/adapters/notify"
	httpTransport "github.com/accounthub/auth-service/internal/adapters/transport/http"
	"github.com/accounthub/auth-service/internal/app/auth/jwt"
	authsvc "github.com/accounthub/auth-service/internal/app/auth/service"
	usersvc "github.com/accounthub/auth-service/internal/app/user/service"
	"github.com/accounthub/auth-service/internal/infra/config"
	lg "github.com/accounthub/auth-service/internal/infra/log"
	"github.com/accounthub/auth-service/internal/infra/server"
	"github.com/accounthub/auth-service/internal/infra/validate"
)

func main() {
	zapLog := lg.Must(os.Getenv("debug"))
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	v := validate.New()

	userRepo := postgresRepo.NewPostgresUserRepo(db)
	tokenRepo := redisRepo.NewRedisTokenRepo(redisCli)
	secretRepo := redisRepo.NewRedisSecretRepo(redisCli)
	notifier := notify.NewLogNotifier(zapLog)

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	auth := authsvc.New(userRepo, tokenRepo, secretRepo, notifier, jwtUtil, cfg, v, zapLog)
	users := usersvc.New(userRepo, cfg, v, zapLog)

	handler := httpTransport.NewHandler(auth, users, zapLog)
	router := httpTransport.NewRouter(cfg, handler)

	rootCtx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg, router, zapLog)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		zapLog.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}
