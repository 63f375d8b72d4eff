package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Baoanh2610/callvideo/internal/config"
	"github.com/Baoanh2610/callvideo/internal/handler"
	"github.com/Baoanh2610/callvideo/internal/token"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("tokend starting",
		zap.String("port", cfg.Port),
		zap.String("allowedOrigin", cfg.AllowedOrigin),
		zap.String("uidPolicy", cfg.UIDPolicy),
	)

	var signer token.Signer
	if cfg.AppID != "" && cfg.AppCertificate != "" {
		signer = token.NewSigner(cfg.AppID, cfg.AppCertificate)
	} else {
		// Keep serving so health checks pass; token requests will return
		// a configuration error until the secrets are set.
		logger.Warn("APP_ID or APP_CERTIFICATE not set, token requests will fail")
	}

	policy := token.BindClientUID
	if cfg.UIDPolicy == config.UIDPolicyServer {
		policy = token.BindServerUID
	}

	svc := token.NewService(signer, policy, logger)
	h := handler.NewHandlers(svc, logger)
	r := handler.NewRouter(h, cfg.AllowedOrigin, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		logger.Info("tokend listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
