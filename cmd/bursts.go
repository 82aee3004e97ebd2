package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-vault/internal/burst"
	"github.com/kozaktomas/photo-vault/internal/library"
)

var burstsCmd = &cobra.Command{
	Use:   "bursts",
	Short: "Group stored photos into burst sequences",
	Long: `Classify the stored image library into burst sequences: photos captured
in rapid succession that are near-identical frames of one capture event.
Each group includes a suggested best frame (largest file, most recent on
ties).`,
	RunE: runBursts,
}

func init() {
	rootCmd.AddCommand(burstsCmd)
}

func runBursts(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(0)
	if err != nil {
		return err
	}
	defer p.Close()

	entries, err := p.Catalog.ListByKind(cmd.Context(), library.KindImage)
	if err != nil {
		return fmt.Errorf("list library entries: %w", err)
	}

	byID := make(map[string]library.Entry, len(entries))
	members := make([]burst.Member, len(entries))
	for i, e := range entries {
		byID[e.ID] = e
		members[i] = burst.Member{
			ID:          e.ID,
			FileName:    e.FileName,
			ByteSize:    e.ByteSize,
			TakenAt:     e.TakenAt,
			Fingerprint: e.Fingerprint,
			Camera:      e.Camera,
		}
	}

	groups := p.Classifier.Classify(members)
	if len(groups) == 0 {
		fmt.Println("No burst sequences found")
		return nil
	}

	fmt.Printf("Found %d burst sequence(s):\n\n", len(groups))
	for i, g := range groups {
		span := time.Duration(g.TimeSpanMillis) * time.Millisecond
		fmt.Printf("Group %d: %d photos over %s (%s)\n", i+1, len(g.MemberIDs), span, g.Reason)
		for _, id := range g.MemberIDs {
			marker := " "
			if id == g.SuggestedBestID {
				marker = "*"
			}
			e := byID[id]
			fmt.Printf("  %s %s (%d bytes, %s)\n", marker, e.FileName, e.ByteSize,
				e.TakenAt.Format("15:04:05.000"))
		}
		fmt.Println()
	}
	fmt.Println("* suggested best frame")
	return nil
}
