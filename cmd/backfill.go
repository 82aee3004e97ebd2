package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-vault/internal/library"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute missing perceptual fingerprints",
	Long: `Compute and persist perceptual fingerprints for stored photos that do not
have one yet. Fingerprints are normally computed lazily during duplicate
checks; backfilling up front keeps the first check after a large import
fast.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().Int("workers", 0, "Image decode workers (defaults to DECODE_WORKERS)")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(mustGetInt(cmd, "workers"))
	if err != nil {
		return err
	}
	defer p.Close()

	missing, err := p.Catalog.ListMissingFingerprint(cmd.Context(), library.KindImage)
	if err != nil {
		return fmt.Errorf("list entries missing fingerprints: %w", err)
	}
	if len(missing) == 0 {
		fmt.Println("All stored photos already have fingerprints")
		return nil
	}

	bar := progressbar.Default(int64(len(missing)), "fingerprinting")
	n, err := p.Service.Backfill(cmd.Context(), func() { _ = bar.Add(1) })
	if err != nil {
		return err
	}

	fmt.Printf("\nComputed fingerprints for %d photo(s)\n", n)
	return nil
}
