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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ebeckert/letterwell/internal/auth"
	"github.com/ebeckert/letterwell/internal/auth/google"
	"github.com/ebeckert/letterwell/internal/config"
	"github.com/ebeckert/letterwell/internal/crypto"
	"github.com/ebeckert/letterwell/internal/drive"
	"github.com/ebeckert/letterwell/internal/handler"
	"github.com/ebeckert/letterwell/internal/secret"
	"github.com/ebeckert/letterwell/internal/store"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	var (
		resolver  secret.Resolver
		encryptor crypto.Encryptor
	)
	if devMode {
		log.Println("Running in development mode: env secrets, mock encryption")
		resolver = secret.NewEnvResolver()
		encryptor = crypto.NewMockEncryptor()
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), os.Getenv("KMS_KEY_ID"))
	}

	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.Open(cfg.DatabasePath, encryptor)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	var broker *google.Broker
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		broker = google.NewBroker(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, db)
	} else {
		log.Println("WARNING: Google OAuth not configured, provider login disabled")
	}

	router := handler.NewRouter(handler.Deps{
		Store:           db,
		Issuer:          issuer,
		Broker:          broker,
		Bridge:          drive.NewBridge(broker),
		ClientURL:       cfg.ClientURL,
		AllowedOrigins:  cfg.AllowedOrigins,
		ProfileTokenTTL: cfg.ProfileTokenTTL,
		DevMode:         cfg.DevMode,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
