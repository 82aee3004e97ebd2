package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check a file against the library without storing it",
	Long: `Run the duplicate check for a single file and report what ingesting it
would do: whether it is byte-identical to a stored photo, and which stored
photos are visually identical to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Int("workers", 0, "Image decode workers (defaults to DECODE_WORKERS)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(mustGetInt(cmd, "workers"))
	if err != nil {
		return err
	}
	defer p.Close()

	file := args[0]
	cand, result, err := p.Service.Check(cmd.Context(), file, filepath.Base(file))
	if err != nil {
		return fmt.Errorf("check %s: %w", file, err)
	}

	fmt.Printf("File:        %s\n", file)
	fmt.Printf("Exact hash:  %s\n", cand.ExactHash)
	fmt.Printf("Fingerprint: %s\n", cand.Fingerprint)
	fmt.Printf("Captured:    %s\n", cand.TakenAt.Format("2006-01-02 15:04:05"))

	if result.AutoSkip {
		fmt.Printf("\nByte-identical to stored photo %s (%s); ingest would skip it.\n",
			result.Existing.ID, result.Existing.FileName)
		return nil
	}
	if len(result.Conflicts) == 0 {
		fmt.Println("\nNo duplicates found; ingest would store it.")
		return nil
	}

	fmt.Printf("\n%d visually identical photo(s) found:\n", len(result.Conflicts))
	for _, c := range result.Conflicts {
		fmt.Printf("  %s (%s, %.2f%% similar)\n", c.Existing.FileName, c.Existing.ID, c.Similarity)
		fmt.Printf("    suggested action: %s - %s\n", c.SuggestedAction, c.Reasoning)
	}
	return nil
}
