package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	endpointName     string
	endpointPath     string
	endpointInactive bool
)

// endpointCmd represents the endpoint command
var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Manage webhook endpoints",
}

// endpointListCmd represents the endpoint list command
var endpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered webhook endpoints with their health statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("GET", "/api/webhooks", nil)
		if err != nil {
			return fmt.Errorf("failed to list endpoints: %w", err)
		}

		var endpoints []map[string]interface{}
		if err := readResponse(resp, &endpoints); err != nil {
			return err
		}

		if outputJSON {
			printOutput(endpoints)
			return nil
		}
		if len(endpoints) == 0 {
			fmt.Println("No endpoints registered")
			return nil
		}
		for _, e := range endpoints {
			state := "active"
			if active, ok := e["isActive"].(bool); ok && !active {
				state = "inactive"
			}
			fmt.Printf("%v  %v  %v  requests=%v failed=%v success=%v%%\n",
				e["id"], e["endpoint"], state, e["totalRequests"], e["failedRequests"], e["successRate"])
		}
		return nil
	},
}

// endpointCreateCmd represents the endpoint create command
var endpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a webhook endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]interface{}{
			"name":     endpointName,
			"endpoint": endpointPath,
			"isActive": !endpointInactive,
		}
		resp, err := makeRequest("POST", "/api/webhooks", body)
		if err != nil {
			return fmt.Errorf("failed to create endpoint: %w", err)
		}

		var ep map[string]interface{}
		if err := readResponse(resp, &ep); err != nil {
			return err
		}

		if outputJSON {
			printOutput(ep)
			return nil
		}
		fmt.Printf("✓ Endpoint registered: %v (%v)\n", ep["id"], ep["endpoint"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointCmd)
	endpointCmd.AddCommand(endpointListCmd)
	endpointCmd.AddCommand(endpointCreateCmd)

	endpointCreateCmd.Flags().StringVar(&endpointName, "name", "", "endpoint display name")
	endpointCreateCmd.Flags().StringVar(&endpointPath, "path", "", "request path the endpoint listens on")
	endpointCreateCmd.Flags().BoolVar(&endpointInactive, "inactive", false, "register the endpoint as inactive")
	endpointCreateCmd.MarkFlagRequired("name")
	endpointCreateCmd.MarkFlagRequired("path")
}
