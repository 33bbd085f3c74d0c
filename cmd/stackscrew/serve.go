package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"NoccStacks-Crew/internal/api"
	"NoccStacks-Crew/internal/run"
	"NoccStacks-Crew/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and process queued crew runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if address != "" {
				a.cfg.Server.Address = address
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides server.address")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := logger.Named("serve")

	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	c, err := newCrew(ctx, cfg, registry)
	if err != nil {
		return err
	}
	attester, err := newAttester(cfg.Proofs)
	if err != nil {
		return err
	}
	authService, err := newAuthService(cfg.Server.Auth)
	if err != nil {
		return err
	}

	store, err := newRunStore(ctx, cfg.Storage.RunStore)
	if err != nil {
		return err
	}
	queue, err := newRunQueue(ctx, cfg.RunQueue)
	if err != nil {
		_ = store.Close()
		return err
	}

	service := run.NewService(store, queue, cfg.Storage.RunStore.Retries,
		run.WithDefaultInputs(c.Inputs(nil)),
	)
	defer func() {
		if err := service.Close(); err != nil {
			log.Warn("关闭运行服务失败", slog.Any("error", err))
		}
	}()

	processor := run.NewProcessor(c, store, queue, queue,
		run.WithWorkerCount(cfg.RunQueue.Worker),
		run.WithAttester(attester),
		run.WithProcessorLogger(logger.Named("run")),
		run.WithRunTimeout(seconds(cfg.RunQueue.RunTimeoutSeconds)),
	)

	// 先等待处理中的 run 结束，再关闭存储与队列。
	stopProcessor := startProcessor(ctx, processor, log)
	defer stopProcessor()

	log.Info("服务启动",
		slog.String("address", cfg.Server.Address),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("run_store", cfg.Storage.RunStore.Driver),
		slog.String("run_queue", cfg.RunQueue.Driver),
		slog.Bool("signing", attester.Signing()),
		slog.String("auth", string(authService.Mode())),
	)

	server := api.NewServer(api.Config{
		Address:      cfg.Server.Address,
		AllowOrigins: cfg.Server.AllowOrigins,
		Auth:         authService,
	}, service, registry)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startProcessor 在后台消费 run 队列，返回的 stop 取消消费并等待处理中的 run 返回。
func startProcessor(ctx context.Context, processor *run.Processor, log *slog.Logger) (stop func()) {
	processorCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("run 处理器异常退出", slog.Any("error", err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
