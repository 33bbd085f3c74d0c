package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"NoccStacks-Crew/internal/tools"
)

func newScrapeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <topic>",
		Short: "Search the Clarity documentation for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := json.Marshal(tools.ScrapeInput{Topic: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			return runTool(cmd, a, tools.ClarityDocScraper, string(input))
		},
	}
}

func newContractCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Generate a Clarity contract scaffold from a JSON request",
		Example: `  stackscrew contract --input contract.json
  echo '{"contract_name":"counter","features":[],"functions":[]}' | stackscrew contract --input -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			return runTool(cmd, a, tools.SmartContractGenerator, input)
		},
	}
	cmd.Flags().StringVarP(&path, "input", "i", "-", "JSON request file, - for stdin")
	return cmd
}

func newTestsCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "Generate a Clarinet Vitest scaffold from a JSON request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			return runTool(cmd, a, tools.TestGenerator, input)
		},
	}
	cmd.Flags().StringVarP(&path, "input", "i", "-", "JSON request file, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return string(data), nil
}

// runTool 执行工具并将结果写到标准输出。
func runTool(cmd *cobra.Command, a *app, name, input string) error {
	registry, err := newRegistry(a.cfg)
	if err != nil {
		return err
	}
	out, err := registry.Execute(cmd.Context(), name, input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
