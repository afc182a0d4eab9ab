package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/lib"
	"github.com/propcrowd/fundhub.go/lib/service"
	"github.com/propcrowd/fundhub.go/rabbitmq"
)

// Replays reconciled payments from a date range to the broker, for
// consumers that lost messages. Set START_DATE and END_DATE (RFC3339),
// DRY_RUN=true only counts.
func main() {

	c := &service.Config{}
	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	logger := lib.Logger(c.LogFilePath)
	startDate, endDate, err := loadStartAndEndDateFromEnv()
	if err != nil {
		logger.Fatalf("Could not load start and end date from env %v", err)
	}
	err = envconfig.Process("", c)
	if err != nil {
		logger.Fatalf("Error loading environment variables: %v", err)
	}
	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri)
	if err != nil {
		logger.Fatal(err)
	}

	defer amqpClient.Close()

	rabbitmqClient, err := rabbitmq.NewClient(amqpClient,
		rabbitmq.WithLogger(logger),
		rabbitmq.WithPaymentExchange(c.RabbitMQPaymentExchange),
		rabbitmq.WithAuditExchange(c.RabbitMQAuditExchange),
		rabbitmq.WithNotificationExchange(c.RabbitMQNotifyExchange),
	)
	if err != nil {
		logger.Fatal(err)
	}

	// close the connection gently at the end of the runtime
	defer rabbitmqClient.Close()

	result := []models.Payment{}
	err = dbConn.NewSelect().
		Model(&result).
		Where("status IN (?)", bun.In([]string{
			common.PaymentStatusCompleted,
			common.PaymentStatusFailed,
			common.PaymentStatusCancelled,
			common.PaymentStatusRefunded,
		})).
		Where("updated_at > ?", startDate).
		Where("updated_at < ?", endDate).
		Scan(context.Background())
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Found %d payments", len(result))
	svc := &service.FundhubService{
		Config:         c,
		DB:             dbConn,
		Logger:         logger,
		RabbitMQClient: rabbitmqClient,
		ReconPubSub:    service.NewPubsub(),
	}
	ctx := context.Background()
	go func() {
		err = svc.RabbitMQClient.StartPublishReconciliations(ctx,
			svc.SubscribeReconciledPayments,
			svc.EncodePaymentWithInvestor,
		)
		if err != nil {
			svc.Logger.Error(err)
			sentry.CaptureException(err)
		}

		svc.Logger.Info("Rabbit payment publisher done")
	}()
	dryRun := os.Getenv("DRY_RUN") == "true"
	for _, payment := range result {
		logger.Infof("Publishing payment id %d status %s", payment.ID, payment.Status)
		if dryRun {
			continue
		}
		svc.ReconPubSub.Publish(payment.Status, payment)
	}
	logger.Infof("Published %d payments", len(result))
}

func loadStartAndEndDateFromEnv() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, os.Getenv("START_DATE"))
	if err != nil {
		return
	}
	end, err = time.Parse(time.RFC3339, os.Getenv("END_DATE"))
	return
}
