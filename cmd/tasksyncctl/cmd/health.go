package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the TaskSync service",
	Long:  `Check the aggregate health of the TaskSync service: store, email transport, and downstream sync target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/api/health", nil)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		var report map[string]interface{}
		if err := readResponse(resp, &report); err != nil {
			return err
		}

		if outputJSON {
			printOutput(report)
			return nil
		}

		status, _ := report["status"].(string)
		if status == "healthy" {
			fmt.Println("✓ Service is healthy")
		} else {
			fmt.Printf("✗ Service is %s\n", status)
		}
		if services, ok := report["services"].(map[string]interface{}); ok {
			for name, raw := range services {
				svc, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				fmt.Printf("  %-8s %-8v %v\n", name, svc["status"], svc["message"])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
