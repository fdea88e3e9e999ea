// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/patent-scout/internal/archive"
	"github.com/pdiddy/patent-scout/internal/audit"
	"github.com/pdiddy/patent-scout/internal/strategy"
	"github.com/pdiddy/patent-scout/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit [job-id]",
	Short: "Compare an archived result against a reference set",
	Long: `Audit loads an archived job result and compares its canonical records
against the reference set for the job's molecule and jurisdiction. The
reference set is read from the configured reference directory, or from
an explicit file given with --reference.

Pending (inferred) records are excluded from the comparison.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().String("reference", "", "reference set YAML file (overrides the reference directory)")
	auditCmd.Flags().Bool("json", false, "output the report as JSON")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	target, err := strategy.Target(cfg.Strategy)
	if err != nil {
		return err
	}
	refFile, _ := cmd.Flags().GetString("reference")
	ref, err := loadReference(cfg.Audit.ReferenceDir, refFile, result.Inputs.Molecule, target)
	if err != nil {
		return err
	}

	report := audit.Compare(cfg.Audit, result.Records, ref)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Indeterminate {
		fmt.Println("Audit indeterminate: empty reference or result set.")
		return nil
	}

	fmt.Printf("Reference: %d ids (%s)\n", report.ExpectedCount, ref.Source)
	fmt.Printf("Found:     %d records, %d matched\n", report.FoundCount, report.MatchedCount)
	fmt.Printf("Recall %.1f%%, precision %.1f%%, F1 %.1f\n",
		report.RecallPercent, report.PrecisionPercent, report.F1Score)
	fmt.Printf("Quality: %s, %s than reference\n", report.QualityRating, report.VsReference)

	if len(report.Missing) > 0 {
		fmt.Printf("\nMissing from results:\n")
		for _, id := range report.Missing {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(report.Extra) > 0 {
		fmt.Printf("\nNot in reference:\n")
		for _, id := range report.Extra {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}

func loadReference(dir, file, molecule, country string) (ref types.ReferenceSet, err error) {
	if file != "" {
		return audit.LoadReference(file)
	}
	if dir == "" {
		return ref, fmt.Errorf("no reference configured: set audit.reference_dir or pass --reference")
	}
	return audit.LoadFor(dir, molecule, country)
}
