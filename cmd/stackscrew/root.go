package main

import (
	"os"

	"github.com/spf13/cobra"

	"NoccStacks-Crew/internal/config"
	"NoccStacks-Crew/pkg/logger"
)

// app 持有命令执行期间共享的配置。
type app struct {
	configPath string
	cfg        *config.Config
}

// NewRootCmd 构造根命令及全部子命令。
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "stackscrew",
		Short: "Crew of LLM agents that scaffolds Clarity contracts and Clarinet tests",
		Long: `stackscrew runs a three-agent crew (project manager, smart-contract developer,
testing agent) that turns a project description into a Clarity contract scaffold
and a matching Vitest suite. The built-in tools can also be invoked directly.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.load()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logger.Sync()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("STACKSCREW_CONFIG"),
		"config file (YAML or JSON); defaults and STACKSCREW_* env vars apply when empty")

	root.AddCommand(
		newKickoffCmd(a),
		newServeCmd(a),
		newScrapeCmd(a),
		newContractCmd(a),
		newTestsCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return logger.Init(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Outputs: cfg.Log.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
		},
	})
}
