package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NoccStacks-Crew/internal/auth"
	"NoccStacks-Crew/internal/config"
	"NoccStacks-Crew/internal/crew"
	"NoccStacks-Crew/internal/knowledge"
	"NoccStacks-Crew/internal/llm"
	"NoccStacks-Crew/internal/llm/gemini"
	"NoccStacks-Crew/internal/llm/openai"
	"NoccStacks-Crew/internal/proofs"
	"NoccStacks-Crew/internal/run"
	"NoccStacks-Crew/internal/scraper"
	"NoccStacks-Crew/internal/testgen"
	"NoccStacks-Crew/internal/tools"
	"NoccStacks-Crew/pkg/logger"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: seconds(cfg.LLM.TimeoutSeconds),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.LLM.Gemini.APIKey,
			Model:  cfg.LLM.Gemini.Model,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func newRegistry(cfg *config.Config) (*tools.Registry, error) {
	docs := scraper.NewDocScraper(
		scraper.NewClient(
			scraper.WithTimeout(seconds(cfg.Scraper.FetchTimeoutSeconds)),
			scraper.WithUserAgent(cfg.Scraper.UserAgent),
		),
		cfg.Scraper.BookBaseURL,
		cfg.Scraper.DocURLs,
	)

	var source testgen.PatternSource = testgen.StaticPatterns{}
	if cfg.TestPatterns.Live {
		source = testgen.NewHarvester(
			scraper.NewClient(
				scraper.WithTimeout(seconds(cfg.TestPatterns.FetchTimeoutSeconds)),
				scraper.WithUserAgent(cfg.Scraper.UserAgent),
			),
			cfg.TestPatterns.URLs,
			nil,
		)
	}
	return tools.NewBuiltinRegistry(tools.Dependencies{
		Scraper: docs,
		Tests:   testgen.NewGenerator(source),
	})
}

func newCrew(ctx context.Context, cfg *config.Config, registry *tools.Registry) (*crew.Crew, error) {
	defs, err := crew.LoadDefinitions(cfg.Crew.AgentsPath, cfg.Crew.TasksPath)
	if err != nil {
		return nil, err
	}
	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []crew.Option{
		crew.WithMaxIterations(cfg.Crew.MaxIterations),
		crew.WithLLMTimeout(seconds(cfg.LLM.TimeoutSeconds)),
		crew.WithDefaultInputs(cfg.Crew.DefaultInputs),
		crew.WithLogger(logger.Named("crew")),
	}
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return nil, err
		}
		opts = append(opts, crew.WithKnowledgeProvider(provider))
	}
	return crew.New(defs, client, registry, opts...)
}

func newRunStore(ctx context.Context, cfg config.RunStoreConfig) (run.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return run.NewMemoryStore(), nil
	case "mysql":
		store, err := run.NewMySQLStore(ctx, run.MySQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: seconds(cfg.ConnMaxLifetimeSeconds),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Driver)
	}
}

func newRunQueue(ctx context.Context, cfg config.RunQueueConfig) (run.Queue, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return run.NewMemoryQueue(1024), nil
	case "redis":
		queue, err := run.NewRedisQueue(ctx, run.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: seconds(cfg.Redis.BlockWaitSeconds),
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	case "rabbitmq":
		queue, err := run.NewRabbitMQQueue(run.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Prefetch:   cfg.RabbitMQ.Prefetch,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return nil, err
		}
		return queue, nil
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}

func newAttester(cfg config.ProofsConfig) (*proofs.Attester, error) {
	return proofs.NewAttester(cfg.SigningKeyHex)
}

func newAuthService(cfg config.AuthConfig) (*auth.Service, error) {
	tokens := make([]auth.TokenConfig, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Name:        t.Name,
			Token:       t.Token,
			TokenSHA256: t.TokenSHA256,
			Permissions: t.Permissions,
		})
	}
	return auth.NewService(auth.Config{Mode: cfg.Mode, Tokens: tokens})
}
