// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/patent-scout/internal/archive"
	"github.com/pdiddy/patent-scout/internal/job"
	"github.com/pdiddy/patent-scout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [molecule]",
	Short: "Aggregate patent filings for a molecule across all sources",
	Long: `Search runs one aggregation job end to end: it expands the molecule
into search terms, queries the registry, public search, and national
office sources, merges the hits into canonical records, and infers
national filings still inside the publication gap.

Credentialed sources are enabled only when their secrets are present;
the job degrades to a partial result when an optional source fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("brand", "", "brand name of the product")
	searchCmd.Flags().StringSlice("dev-code", nil, "development codes (repeatable)")
	searchCmd.Flags().StringSlice("variant", nil, "pre-translated name variants; skips the translation service")
	searchCmd.Flags().String("cas", "", "CAS registry number")
	searchCmd.Flags().String("country", "", "target jurisdiction (default from config)")
	searchCmd.Flags().Bool("json", false, "output the full result as JSON")
	searchCmd.Flags().Bool("save", false, "archive the result on completion")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if country, _ := cmd.Flags().GetString("country"); country != "" {
		cfg.Strategy.TargetCountry = country
	}

	brand, _ := cmd.Flags().GetString("brand")
	devCodes, _ := cmd.Flags().GetStringSlice("dev-code")
	variants, _ := cmd.Flags().GetStringSlice("variant")
	cas, _ := cmd.Flags().GetString("cas")

	inputs := types.JobInputs{
		Molecule:           args[0],
		Brand:              brand,
		DevCodes:           devCodes,
		TranslatedVariants: variants,
		CASNumber:          cas,
	}

	orch := job.NewOrchestrator(job.NewPipeline(cfg, logger))
	result, err := orch.Run(context.Background(), inputs)
	if err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(context.Background(), result); err != nil {
			return fmt.Errorf("archiving result: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Archived as %s\n", result.JobID)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(result *types.JobResult) {
	fmt.Fprintf(os.Stdout, "%-18s  %-5s  %-10s  %-9s  %s\n",
		"Publication", "Kind", "Confidence", "Sources", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for _, rec := range result.Records {
		title := rec.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-18s  %-5s  %-10.1f  %-9s  %s\n",
			rec.ID.String(), rec.KindCode, rec.Confidence,
			strings.Join(rec.Sources, ","), title)
	}
	fmt.Fprintf(os.Stdout, "\n%d records, %d/%d terms searched, %s\n",
		len(result.Records), result.TermsSearched, result.TermsGenerated, result.Completeness)

	if len(result.Pending) > 0 {
		fmt.Fprintf(os.Stdout, "\nPending national filings (%s):\n", types.InferenceWarning)
		for _, p := range result.Pending {
			fmt.Fprintf(os.Stdout, "  %s -> %s (%s, %d months elapsed)\n",
				p.DerivedFrom.String(), p.ExpectedCountry, p.Probability, p.ElapsedMonths)
		}
	}

	if result.Audit != nil {
		a := result.Audit
		if a.Indeterminate {
			fmt.Fprintln(os.Stdout, "\nAudit: indeterminate (empty reference or result set)")
		} else {
			fmt.Fprintf(os.Stdout, "\nAudit: recall %.1f%%, precision %.1f%%, F1 %.1f (%s, %s vs reference)\n",
				a.RecallPercent, a.PrecisionPercent, a.F1Score, a.QualityRating, a.VsReference)
		}
	}

	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d source failures:\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Fprintf(os.Stderr, "  [%s] %s %q: %s\n", d.Source, d.Kind, d.Term, d.Message)
		}
	}
}
