package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	eventTitle       string
	eventDescription string
	eventStatus      string
	eventPriority    string
	eventProject     string
	eventAssignee    string
	eventSource      string
	eventExternalID  string
	eventMetadata    string
	eventFile        string
)

// eventCmd represents the event command
var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Send task events to the ingestion endpoint",
}

// eventSendCmd represents the event send command
var eventSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one task event",
	Long: `Send one task event to the webhook ingestion endpoint.

The payload is built from flags, or read whole from a JSON file with --file.

Examples:
  tasksyncctl event send --title "Add auth" --status completed --project API --source jira --external-id PROJ-1
  tasksyncctl event send --file event.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]interface{}{}

		if eventFile != "" {
			raw, err := os.ReadFile(eventFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", eventFile, err)
			}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("invalid JSON in %s: %w", eventFile, err)
			}
		} else {
			payload["title"] = eventTitle
			payload["status"] = eventStatus
			payload["projectName"] = eventProject
			payload["sourceSystem"] = eventSource
			if eventDescription != "" {
				payload["description"] = eventDescription
			}
			if eventPriority != "" {
				payload["priority"] = eventPriority
			}
			if eventAssignee != "" {
				payload["assignee"] = eventAssignee
			}
			if eventExternalID != "" {
				payload["externalId"] = eventExternalID
			}
			if eventMetadata != "" {
				var meta map[string]interface{}
				if err := json.Unmarshal([]byte(eventMetadata), &meta); err != nil {
					return fmt.Errorf("invalid --metadata JSON: %w", err)
				}
				payload["metadata"] = meta
			}
		}

		resp, err := makeRequest("POST", "/api/webhook/tasks", payload)
		if err != nil {
			return fmt.Errorf("failed to send event: %w", err)
		}

		var result map[string]interface{}
		if err := readResponse(resp, &result); err != nil {
			return err
		}

		if outputJSON {
			printOutput(result)
			return nil
		}
		fmt.Printf("✓ Event accepted: task %v (%v)\n", result["taskId"], result["action"])
		return nil
	},
}

// eventTestCmd represents the event test command
var eventTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a synthetic test event through the ingestion path",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest("POST", "/api/test/webhook", nil)
		if err != nil {
			return fmt.Errorf("failed to send test event: %w", err)
		}

		var result map[string]interface{}
		if err := readResponse(resp, &result); err != nil {
			return err
		}

		if outputJSON {
			printOutput(result)
			return nil
		}
		fmt.Println("✓ Test event accepted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(eventSendCmd)
	eventCmd.AddCommand(eventTestCmd)

	eventSendCmd.Flags().StringVar(&eventTitle, "title", "", "task title (required unless --file)")
	eventSendCmd.Flags().StringVar(&eventDescription, "description", "", "task description")
	eventSendCmd.Flags().StringVar(&eventStatus, "status", "", "task status: pending, in-progress, completed, cancelled")
	eventSendCmd.Flags().StringVar(&eventPriority, "priority", "", "task priority: low, medium, high, urgent")
	eventSendCmd.Flags().StringVar(&eventProject, "project", "", "project name (required unless --file)")
	eventSendCmd.Flags().StringVar(&eventAssignee, "assignee", "", "assignee")
	eventSendCmd.Flags().StringVar(&eventSource, "source", "", "source system (required unless --file)")
	eventSendCmd.Flags().StringVar(&eventExternalID, "external-id", "", "external task identifier")
	eventSendCmd.Flags().StringVar(&eventMetadata, "metadata", "", "metadata as a JSON object")
	eventSendCmd.Flags().StringVar(&eventFile, "file", "", "read the whole payload from a JSON file")
}
