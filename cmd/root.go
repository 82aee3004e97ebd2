package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-vault",
	Short: "A photo library ingest engine with duplicate and burst detection",
	Long: `Photo Vault ingests photos into a tiered library, detecting exact and
visually identical duplicates with perceptual fingerprints and grouping
rapid-fire burst sequences so they can be reviewed as a set.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
