package main

import (
	"context"
	"fmt"
	"log"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/propcrowd/fundhub.go/db"
	"github.com/propcrowd/fundhub.go/lib"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/psp"
)

// script to reconcile stale pending payments against the providers, for
// cron setups that do not want the long running sweep routine
func main() {

	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configrued log file
	logger := lib.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	startupCtx := context.Background()

	pspConfig, err := psp.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading provider config: %v", err)
	}
	providers, err := psp.NewRegistry(pspConfig)
	if err != nil {
		logger.Fatalf("Error initializing provider registry: %v", err)
	}

	svc := &service.FundhubService{
		Config:      c,
		DB:          dbConn,
		Logger:      logger,
		Providers:   providers,
		ReconPubSub: service.NewPubsub(),
	}

	err = svc.SweepPendingPayments(startupCtx)
	if err != nil {
		sentry.CaptureException(err)
		svc.Logger.Error(err)
	}
}
