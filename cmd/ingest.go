package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-vault/internal/ingest"
	"github.com/kozaktomas/photo-vault/internal/library"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path> [path...]",
	Short: "Ingest photos into the library",
	Long: `Ingest photos from files or folders into the staging tier.

Every file is checked against the library first: byte-identical duplicates
are skipped silently, and visually identical ones follow the --on-conflict
policy. By default, only files directly in the given folders are ingested;
use -r to descend into subdirectories.

Example:
  photo-vault ingest /path/to/photos
  photo-vault ingest -r --on-conflict keep-both /path/to/photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories")
	ingestCmd.Flags().String("on-conflict", string(ingest.PolicySkip),
		"What to do with visually identical duplicates: skip, keep-existing or keep-both")
	ingestCmd.Flags().Int("workers", 0, "Image decode workers (defaults to DECODE_WORKERS)")
}

// collectMediaFiles expands the given paths into a list of media files,
// skipping files with unrecognized extensions.
func collectMediaFiles(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, path := range paths {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !recursive && p != path {
					return fs.SkipDir
				}
				return nil
			}
			if library.KindForFilename(d.Name()) != library.KindOther {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
	}
	return files, nil
}

func parsePolicy(s string) (ingest.Policy, error) {
	switch ingest.Policy(s) {
	case ingest.PolicySkip, ingest.PolicyKeepExisting, ingest.PolicyKeepBoth:
		return ingest.Policy(s), nil
	default:
		return "", fmt.Errorf("unknown --on-conflict policy %q", s)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	policy, err := parsePolicy(mustGetString(cmd, "on-conflict"))
	if err != nil {
		return err
	}

	files, err := collectMediaFiles(args, mustGetBool(cmd, "recursive"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No media files found")
		return nil
	}

	p, err := buildPipeline(mustGetInt(cmd, "workers"))
	if err != nil {
		return err
	}
	defer p.Close()

	bar := progressbar.Default(int64(len(files)), "ingesting")

	var stored, skipped int
	var conflicted []string
	for _, file := range files {
		outcome, err := p.Service.Ingest(cmd.Context(), file, filepath.Base(file), policy)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", file, err)
		}
		switch outcome.Status {
		case ingest.StatusStored:
			stored++
		case ingest.StatusSkipped:
			skipped++
		case ingest.StatusConflict:
			conflicted = append(conflicted, file)
		}
		_ = bar.Add(1)
	}

	fmt.Printf("\nIngested %d of %d files (%d duplicates skipped)\n", stored, len(files), skipped)
	if len(conflicted) > 0 {
		fmt.Printf("%d files conflict with stored photos and were left alone:\n", len(conflicted))
		for _, file := range conflicted {
			fmt.Printf("  %s\n", file)
		}
		fmt.Println("Re-run with --on-conflict keep-existing or keep-both to decide for all of them.")
	}
	return nil
}
