package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"risksync/handler"
	"risksync/internal/integrations/openai"
	"risksync/internal/integrations/paramstore"
	"risksync/internal/repository"
	"risksync/internal/retry"
	"risksync/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxRetries := envInt("MAX_RETRIES", 3)
	baseDelaySeconds := envFloat("RETRY_BASE_DELAY_SECONDS", 1.0)
	concurrency := envInt("PREDICT_CONCURRENCY", 8)

	policy := retry.Policy{
		MaxAttempts: maxRetries,
		BaseDelay:   time.Duration(baseDelaySeconds * float64(time.Second)),
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable, policy)
	if err != nil {
		slog.Error("failed to create record store", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	predictor, err := usecase.NewPredictor(ssmClient, openaiClient, paramPrefix, policy)
	if err != nil {
		slog.Error("failed to create predictor", "err", err)
		os.Exit(1)
	}
	processor, err := usecase.NewProcessor(predictor, store, concurrency)
	if err != nil {
		slog.Error("failed to create batch processor", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(processor)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
