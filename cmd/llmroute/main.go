// Command llmroute runs one completion through the full routing pipeline
// against real providers. Useful for smoke-testing provider credentials and
// the anonymization gate from the command line.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mvandenbroeck/legal-ai-gateway/internal/anonymize"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/audit"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/classify"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/config"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/detect"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/gateway"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/observability/metrics"
	"github.com/mvandenbroeck/legal-ai-gateway/internal/provider"
	"github.com/mvandenbroeck/legal-ai-gateway/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		prompt    = flag.String("prompt", "Summarize the grounds of appeal in Cass. 12 maart 2021.", "user prompt to route")
		purpose   = flag.String("purpose", "case_analysis", "purpose tag recorded in the audit trail")
		preferred = flag.String("provider", "", "preferred provider name")
		status    = flag.Bool("status", false, "probe provider health and exit")
	)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gw, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	if *status {
		for name, st := range gw.ProviderStatus(ctx) {
			fmt.Printf("%-12s %s\n", name, st)
		}
		return
	}

	resp, err := gw.Complete(ctx, gateway.Request{
		Messages: []provider.ChatMessage{
			{Role: provider.ChatRoleUser, Content: *prompt},
		},
		Purpose:           *purpose,
		TenantID:          "smoke-test",
		UserID:            os.Getenv("USER"),
		PreferredProvider: *preferred,
		Temperature:       0.2,
		MaxTokens:         512,
	})
	if err != nil {
		log.Fatalf("complete: %v", err)
	}

	fmt.Printf("provider:    %s (%s)\n", resp.Provider, resp.Model)
	fmt.Printf("tier:        %s\n", resp.Tier)
	fmt.Printf("anonymized:  %v\n", resp.WasAnonymized)
	fmt.Printf("tokens:      in=%d out=%d cost=$%.5f\n", resp.TokensIn, resp.TokensOut, resp.EstimatedCost)
	fmt.Printf("correlation: %s\n", resp.CorrelationID)
	fmt.Printf("\n%s\n", resp.Content)
}

func buildGateway(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*gateway.Gateway, error) {
	var deps provider.Deps
	configs := providerConfigs(cfg)

	for _, pc := range configs {
		if pc.Family == provider.FamilyBedrock {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			deps.Bedrock = bedrockruntime.NewFromConfig(awsCfg)
			break
		}
	}

	registry, err := provider.NewRegistry(configs, deps)
	if err != nil {
		return nil, err
	}

	var auditLog audit.Logger
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open audit db: %w", err)
		}
		auditLog = audit.NewStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, audit trail kept in memory only")
		auditLog = audit.NewRecorder()
	}

	var cache *gateway.ResponseCache
	if cfg.RedisAddr != "" {
		cache = gateway.NewResponseCache(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}), cfg.CacheTTL)
	}

	detector := detect.New()
	return gateway.New(gateway.Options{
		Registry:   registry,
		Classifier: classify.New(detector, registry),
		Anonymizer: anonymize.New(detector),
		Detector:   detector,
		Audit:      auditLog,
		Cache:      cache,
		Logger:     logger,
		Metrics:    metrics.NewGatewayMetrics(nil),
		Timeout:    cfg.RequestTimeout,
	})
}

// providerConfigs assembles the registry from whichever vendors have
// credentials configured. Trust tiers reflect our data-protection posture:
// EU-hosted vendors are tier 1, US-hosted vendors under contractual
// safeguards are tier 2, everything else handles public data only.
func providerConfigs(cfg *config.Config) []provider.Config {
	var out []provider.Config
	if cfg.MistralAPIKey != "" {
		out = append(out, provider.Config{
			Name: "mistral", TrustTier: provider.TrustDomestic, Family: provider.FamilyOpenAI,
			DefaultModel: cfg.MistralModel, APIKey: cfg.MistralAPIKey, BaseURL: cfg.MistralBaseURL,
			InputCostPer1K: 0.002, OutputCostPer1K: 0.006,
			SupportsStreaming: true, MaxContextTokens: 128000,
		})
	}
	if cfg.BedrockModelID != "" && os.Getenv("AWS_ACCESS_KEY_ID") != "" {
		out = append(out, provider.Config{
			Name: "bedrock", TrustTier: provider.TrustDomestic, Family: provider.FamilyBedrock,
			DefaultModel: cfg.BedrockModelID,
			InputCostPer1K: 0.003, OutputCostPer1K: 0.015,
			SupportsStreaming: true, MaxContextTokens: 200000,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		out = append(out, provider.Config{
			Name: "openai", TrustTier: provider.TrustConditional, Family: provider.FamilyOpenAI,
			DefaultModel: cfg.OpenAIModel, APIKey: cfg.OpenAIAPIKey,
			InputCostPer1K: 0.0025, OutputCostPer1K: 0.01,
			SupportsStreaming: true, MaxContextTokens: 128000,
		})
	}
	if cfg.GeminiAPIKey != "" {
		out = append(out, provider.Config{
			Name: "gemini", TrustTier: provider.TrustConditional, Family: provider.FamilyGemini,
			DefaultModel: cfg.GeminiModel, APIKey: cfg.GeminiAPIKey,
			InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006,
			SupportsStreaming: true, MaxContextTokens: 1000000,
		})
	}
	if cfg.GroqAPIKey != "" {
		out = append(out, provider.Config{
			Name: "groq", TrustTier: provider.TrustPublicOnly, Family: provider.FamilyOpenAI,
			DefaultModel: cfg.GroqModel, APIKey: cfg.GroqAPIKey, BaseURL: cfg.GroqBaseURL,
			InputCostPer1K: 0.00059, OutputCostPer1K: 0.00079,
			SupportsStreaming: true, MaxContextTokens: 128000,
		})
	}
	return out
}
