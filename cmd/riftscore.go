package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/riftscore"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Calculate, override, and inspect risk scores",
}

var scoreCalculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute a new score record from a factor inputs file",
	Long: `Reads named risk factors (each 0-100) from a YAML file and writes a new
versioned score record.

Example inputs file:
  payment_history: 80
  business_longevity: 60
  industry_risk: 50
  financial_health: 70
  sanctions_clean: 100
  doc_completeness: 90
  esg_signal: 40`,
	RunE: runScoreCalculate,
}

var scoreOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Apply a signed delta on top of the latest score",
	RunE:  runScoreOverride,
}

var scoreHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List all score versions for an entity",
	RunE:  runScoreHistory,
}

func init() {
	for _, c := range []*cobra.Command{scoreCalculateCmd, scoreOverrideCmd, scoreHistoryCmd} {
		c.Flags().String("entity-type", "invoice", "entity type: invoice or organization")
		c.Flags().String("entity-id", "", "entity id (required)")
		_ = c.MarkFlagRequired("entity-id")
	}
	scoreCalculateCmd.Flags().String("inputs", "", "path to YAML factor inputs (required)")
	_ = scoreCalculateCmd.MarkFlagRequired("inputs")

	scoreOverrideCmd.Flags().Float64("delta", 0, "signed score delta")
	scoreOverrideCmd.Flags().String("reason", "", "override reason (required)")
	scoreOverrideCmd.Flags().String("actor", "", "who is overriding (required)")
	_ = scoreOverrideCmd.MarkFlagRequired("reason")
	_ = scoreOverrideCmd.MarkFlagRequired("actor")

	scoreCmd.AddCommand(scoreCalculateCmd, scoreOverrideCmd, scoreHistoryCmd)
	rootCmd.AddCommand(scoreCmd)
}

func scoreEngine(cmd *cobra.Command) (*riftscore.Engine, func(), model.EntityType, string, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)

	if err := cfg.Validate(); err != nil {
		stop()
		return nil, nil, "", "", err
	}
	env, err := initEnv(ctx)
	if err != nil {
		stop()
		return nil, nil, "", "", err
	}

	entityType, _ := cmd.Flags().GetString("entity-type")
	entityID, _ := cmd.Flags().GetString("entity-id")
	cleanup := func() {
		env.Close()
		stop()
	}
	return riftscore.New(env.Store, cfg.Score), cleanup, model.EntityType(entityType), entityID, nil
}

func runScoreCalculate(cmd *cobra.Command, _ []string) error {
	engine, cleanup, entityType, entityID, err := scoreEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	inputsPath, _ := cmd.Flags().GetString("inputs")
	raw, err := os.ReadFile(inputsPath)
	if err != nil {
		return eris.Wrapf(err, "score: read inputs file %s", inputsPath)
	}
	var inputs map[string]float64
	if err := yaml.Unmarshal(raw, &inputs); err != nil {
		return eris.Wrapf(err, "score: parse inputs file %s", inputsPath)
	}

	rec, err := engine.Calculate(cmd.Context(), entityType, entityID, inputs)
	if err != nil {
		return err
	}
	printScoreRecord(rec)
	return nil
}

func runScoreOverride(cmd *cobra.Command, _ []string) error {
	engine, cleanup, entityType, entityID, err := scoreEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	delta, _ := cmd.Flags().GetFloat64("delta")
	reason, _ := cmd.Flags().GetString("reason")
	actor, _ := cmd.Flags().GetString("actor")

	rec, err := engine.Override(cmd.Context(), entityType, entityID, delta, reason, actor)
	if err != nil {
		return err
	}
	printScoreRecord(rec)
	return nil
}

func runScoreHistory(cmd *cobra.Command, _ []string) error {
	engine, cleanup, entityType, entityID, err := scoreEngine(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := engine.History(cmd.Context(), entityType, entityID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No score records.")
		return nil
	}
	fmt.Printf("%-6s %-7s %-6s %8s %-25s\n", "Ver", "Score", "Grade", "Delta", "Calculated")
	for _, r := range records {
		delta := ""
		if r.OverrideDelta != nil {
			delta = fmt.Sprintf("%+.2f", *r.OverrideDelta)
		}
		fmt.Printf("%-6s %-7.2f %-6s %8s %-25s\n",
			r.Version, r.TotalScore, r.Grade, delta, r.CalculatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printScoreRecord(rec *model.RiftScoreRecord) {
	fmt.Printf("Entity:  %s %s\n", rec.EntityType, rec.EntityID)
	fmt.Printf("Version: %s (engine %s)\n", rec.Version, rec.EngineVersion)
	fmt.Printf("Score:   %.2f / 100\n", rec.TotalScore)
	fmt.Printf("Grade:   %s\n", rec.Grade)
	if rec.Supersedes != "" {
		fmt.Printf("Supersedes: %s\n", rec.Supersedes)
	}
	if rec.OverrideDelta != nil {
		fmt.Printf("Override:   %+.2f (%s)\n", *rec.OverrideDelta, rec.OverrideReason)
	}
	if len(rec.Breakdown) > 0 {
		fmt.Println("\nBreakdown:")
		factors := make([]string, 0, len(rec.Breakdown))
		for f := range rec.Breakdown {
			factors = append(factors, f)
		}
		sort.Strings(factors)
		for _, f := range factors {
			fmt.Printf("  %-20s %6.2f\n", f, rec.Breakdown[f])
		}
	}
}
