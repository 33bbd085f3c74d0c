package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"NoccStacks-Crew/internal/crew"
	"NoccStacks-Crew/internal/proofs"
)

type kickoffOptions struct {
	projectName        string
	projectDescription string
	inputs             []string
	output             string
}

func newKickoffCmd(a *app) *cobra.Command {
	opts := &kickoffOptions{}
	cmd := &cobra.Command{
		Use:   "kickoff",
		Short: "Run the crew once and print the final output",
		Example: `  stackscrew kickoff
  stackscrew kickoff --project-name "Token Vault" --project-description "Lock STX until a block height"
  stackscrew kickoff --input project_name=Escrow --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKickoff(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.projectName, "project-name", "", "project name (defaults to the sample project)")
	cmd.Flags().StringVar(&opts.projectDescription, "project-description", "", "project description")
	cmd.Flags().StringArrayVar(&opts.inputs, "input", nil, "extra template input as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	return cmd
}

func runKickoff(cmd *cobra.Command, a *app, opts *kickoffOptions) error {
	inputs, err := parseInputs(opts.inputs)
	if err != nil {
		return err
	}
	if opts.projectName != "" {
		inputs["project_name"] = opts.projectName
	}
	if opts.projectDescription != "" {
		inputs["project_description"] = opts.projectDescription
	}

	ctx := cmd.Context()
	registry, err := newRegistry(a.cfg)
	if err != nil {
		return err
	}
	c, err := newCrew(ctx, a.cfg, registry)
	if err != nil {
		return err
	}
	result, err := c.Kickoff(ctx, inputs)
	if err != nil {
		return err
	}

	switch strings.ToLower(opts.output) {
	case "json":
		attester, err := newAttester(a.cfg.Proofs)
		if err != nil {
			return err
		}
		return writeKickoffJSON(cmd.OutOrStdout(), result, attester)
	case "text", "":
		_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Final)
		return err
	default:
		return fmt.Errorf("不支持的输出格式: %s", opts.output)
	}
}

type kickoffReport struct {
	*crew.Result
	Proofs []proofs.Proof `json:"proofs,omitempty"`
}

func writeKickoffJSON(w io.Writer, result *crew.Result, attester *proofs.Attester) error {
	report := kickoffReport{Result: result}
	for _, task := range result.Tasks {
		proof, err := attester.Attest(task.Name, []byte(task.Output))
		if err != nil {
			return err
		}
		report.Proofs = append(report.Proofs, proof)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// parseInputs 将 key=value 形式的参数解析为输入映射。
func parseInputs(pairs []string) (map[string]string, error) {
	inputs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("输入格式应为 key=value: %q", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}
