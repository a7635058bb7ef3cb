package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	taskStatus  string
	taskProject string
	taskLimit   int
	taskRecent  bool
)

// taskCmd represents the task command
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect tracked tasks",
}

// taskListCmd represents the task list command
var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks known to the service, optionally filtered.

Examples:
  tasksyncctl task list
  tasksyncctl task list --status completed --limit 5
  tasksyncctl task list --recent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/tasks"
		q := url.Values{}
		if taskRecent {
			path = "/api/tasks/recent"
		}
		if taskStatus != "" {
			q.Set("status", taskStatus)
		}
		if taskProject != "" {
			q.Set("project", taskProject)
		}
		if taskLimit > 0 {
			q.Set("limit", strconv.Itoa(taskLimit))
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := makeRequest("GET", path, nil)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		var tasks []map[string]interface{}
		if err := readResponse(resp, &tasks); err != nil {
			return err
		}

		if outputJSON {
			printOutput(tasks)
			return nil
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found")
			return nil
		}
		for _, t := range tasks {
			fmt.Printf("%v  [%v/%v]  %v  (%v)\n", t["id"], t["status"], t["priority"], t["title"], t["projectName"])
		}
		fmt.Printf("\n%d task(s)\n", len(tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd)

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "filter by status")
	taskListCmd.Flags().StringVar(&taskProject, "project", "", "filter by project name")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 0, "maximum number of tasks to return")
	taskListCmd.Flags().BoolVar(&taskRecent, "recent", false, "list most recently updated tasks")
}
