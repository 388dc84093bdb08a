package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reidpipe/internal/config"
	"reidpipe/internal/pipeline"
)

// planOutput is the JSON shape of a resolved plan.
type planOutput struct {
	Variant     string           `json:"variant"`
	Checkpoint  string           `json:"checkpoint_dir"`
	Invocations []planInvocation `json:"invocations"`
}

type planInvocation struct {
	Stage        string   `json:"stage"`
	Collaborator string   `json:"collaborator"`
	Binary       string   `json:"binary"`
	Args         []string `json:"args"`
	Env          []string `json:"env,omitempty"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var expFlags experimentFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resolved collaborator invocations without launching anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return renderPlan(cmd, cfg, &expFlags, asJSON)
		},
	}

	expFlags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the plan as JSON")
	return cmd
}

func renderPlan(cmd *cobra.Command, cfg *config.Config, expFlags *experimentFlags, asJSON bool) error {
	exp, err := expFlags.build(cmd, cfg)
	if err != nil {
		return err
	}
	env, err := expFlags.environment(cfg)
	if err != nil {
		return err
	}
	specs, err := extractionSpecs(cfg)
	if err != nil {
		return err
	}
	graph, err := pipeline.DefaultGraph(exp, specs)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return err
	}

	invocations := make([]planInvocation, 0, len(graph.Stages()))
	for _, stage := range graph.Stages() {
		inv, err := graph.Resolve(stage.Name, exp, env, nil)
		if err != nil {
			return err
		}
		binary := cfg.TrainerBinary()
		if inv.Collaborator == pipeline.CollaboratorExtractor {
			binary = cfg.ExtractorBinary()
		}
		invocations = append(invocations, planInvocation{
			Stage:        inv.Stage,
			Collaborator: inv.Collaborator,
			Binary:       binary,
			Args:         inv.Args,
			Env:          inv.Env,
		})
	}

	if asJSON {
		return writeJSON(cmd, planOutput{
			Variant:     exp.Variant(),
			Checkpoint:  exp.CheckpointDir(env.LogsDir),
			Invocations: invocations,
		})
	}

	rows := make([][]string, 0, len(invocations))
	for _, inv := range invocations {
		rows = append(rows, []string{
			inv.Stage,
			inv.Collaborator,
			inv.Binary + " " + strings.Join(inv.Args, " "),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Variant: %s\n", exp.Variant())
	fmt.Fprintf(out, "Checkpoint dir: %s\n", exp.CheckpointDir(env.LogsDir))
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Collaborator", "Command"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	return nil
}
