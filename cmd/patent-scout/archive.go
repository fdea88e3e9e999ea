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
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived job results (list, show, find, export)",
	Long: `Archive manages the local SQLite store of completed job results. Use
subcommands to list archived jobs, show a stored result, search records
across jobs with full-text queries, or export a result to YAML or JSON.`,
}

// --- list subcommand ---

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived jobs, most recent first",
	RunE:  runArchiveList,
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("Archive is empty.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-8s  %s\n",
		"Job", "Molecule", "Complete", "Records", "Completed")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 95))
	for _, s := range summaries {
		completed := ""
		if !s.CompletedAt.IsZero() {
			completed = s.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-10s  %-8d  %s\n",
			s.JobID, s.Molecule, s.Completeness, s.RecordCount, completed)
	}
	return nil
}

// --- show subcommand ---

var archiveShowCmd = &cobra.Command{
	Use:   "show [job-id]",
	Short: "Show an archived job result",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

// --- find subcommand ---

var archiveFindCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Search archived records with full-text search and filters",
	Long: `Find searches record titles and abstracts across all archived jobs
using FTS5 full-text search, optionally narrowed by jurisdiction,
confirming source, molecule, or minimum confidence.`,
	RunE: runArchiveFind,
}

func runArchiveFind(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	country, _ := cmd.Flags().GetString("country")
	source, _ := cmd.Flags().GetString("source")
	molecule, _ := cmd.Flags().GetString("molecule")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := archive.SearchOptions{
		Query:         strings.Join(args, " "),
		Country:       country,
		Source:        source,
		Molecule:      molecule,
		MinConfidence: minConfidence,
		MaxResults:    limit,
	}
	if opts.Query == "" && country == "" && source == "" && molecule == "" && minConfidence == 0 {
		return fmt.Errorf("query or filter required: provide a search query, --country, --source, --molecule, or --min-confidence")
	}

	results, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-18s  %-10s  %-20s  %s\n", "Publication", "Confidence", "Molecule", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 95))
	for _, r := range results {
		title := r.Title
		if len(title) > 42 {
			title = title[:39] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-18s  %-10.1f  %-20s  %s\n",
			r.ID.String(), r.Confidence, r.Molecule, title)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export [job-id]",
	Short: "Export an archived job result to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveExport,
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), args[0])
	case "json":
		path, err = store.ExportJSON(context.Background(), args[0])
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func openArchive() (*archive.Store, error) {
	return archive.Open(pipelineConfig().Archive)
}

func init() {
	archiveShowCmd.Flags().Bool("json", false, "output the result as JSON")

	archiveFindCmd.Flags().String("country", "", "filter by jurisdiction")
	archiveFindCmd.Flags().String("source", "", "filter by confirming source")
	archiveFindCmd.Flags().String("molecule", "", "filter by molecule")
	archiveFindCmd.Flags().Float64("min-confidence", 0, "minimum record confidence")
	archiveFindCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	archiveFindCmd.Flags().Bool("json", false, "output results as JSON")

	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	archiveCmd.AddCommand(archiveFindCmd)
	archiveCmd.AddCommand(archiveExportCmd)

	rootCmd.AddCommand(archiveCmd)
}
