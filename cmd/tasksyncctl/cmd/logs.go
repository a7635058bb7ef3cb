package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	logsErrors    bool
	logsWebhookID string
	logsLimit     int
)

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show delivery logs",
	Long: `Show delivery log entries for ingestion and sync attempts.

Examples:
  tasksyncctl logs
  tasksyncctl logs --errors
  tasksyncctl logs --webhook-id <id> --limit 100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/logs"
		q := url.Values{}
		if logsErrors {
			path = "/api/logs/errors"
		} else if logsWebhookID != "" {
			q.Set("webhookId", logsWebhookID)
		}
		if logsLimit > 0 {
			q.Set("limit", strconv.Itoa(logsLimit))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := makeRequest("GET", path, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		var logs []map[string]interface{}
		if err := readResponse(resp, &logs); err != nil {
			return err
		}

		if outputJSON {
			printOutput(logs)
			return nil
		}
		if len(logs) == 0 {
			fmt.Println("No log entries")
			return nil
		}
		for _, l := range logs {
			line := fmt.Sprintf("%v  %v %v  %v", l["createdAt"], l["method"], l["status"], l["id"])
			if msg, ok := l["errorMessage"].(string); ok && msg != "" {
				line += "  " + msg
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolVar(&logsErrors, "errors", false, "show only error entries")
	logsCmd.Flags().StringVar(&logsWebhookID, "webhook-id", "", "filter by webhook endpoint id")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 0, "maximum number of entries")
}
