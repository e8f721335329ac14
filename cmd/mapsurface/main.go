package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mapsurface",
	Short: "CO₂ map surface service",
	Long: `Serves the map surface that plots points of interest, CO₂ readings and planned
interventions on live map tiles or on the offline fallback.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, previewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
