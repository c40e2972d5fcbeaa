package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/infrastructure-risk/internal/config"
	"github.com/i474232898/infrastructure-risk/internal/monitor"
)

var rootCmd = &cobra.Command{
	Use:   "infrastructure-risk",
	Short: "Scores roads, bridges and railway stations around a city for risk",
	Long: `infrastructure-risk discovers roads, bridges and railway stations around a city
from OpenStreetMap and scores each one using current weather and traffic.`,
	RunE: serveCmd.RunE,
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run a single search and print the scored infrastructure as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		city, _ := cmd.Flags().GetString("city")
		radius, _ := cmd.Flags().GetFloat64("radius")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := context.Background()
		deps, err := buildService(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer deps.Close()

		result, err := deps.Service.Search(ctx, monitor.Request{City: city, RadiusKM: radius})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	assessCmd.Flags().String("city", monitor.DefaultCity, "City to search around")
	assessCmd.Flags().Float64("radius", monitor.DefaultRadiusKM, "Search radius in kilometers")

	rootCmd.AddCommand(serveCmd, assessCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
