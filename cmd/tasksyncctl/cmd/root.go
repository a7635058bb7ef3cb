package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	serverAddr string
	timeout    time.Duration
	outputJSON bool
	apiToken   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tasksyncctl",
	Short: "TaskSync CLI - Interact with the TaskSync ingestion service",
	Long: `TaskSync CLI (tasksyncctl) is a command line tool for interacting with
the TaskSync webhook ingestion service.

You can use it to send task events, inspect tasks and webhook endpoints,
review delivery logs, and check service health.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tasksyncctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:8080", "server address (host:port)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token for the admin API (overrides TASKSYNC_TOKEN env var)")

	// Bind flags to viper
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tasksyncctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Override global variables with config values if flags weren't explicitly set
	if !rootCmd.PersistentFlags().Changed("server") {
		if s := viper.GetString("server"); s != "" {
			serverAddr = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
	if !rootCmd.PersistentFlags().Changed("token") {
		if t := viper.GetString("token"); t != "" {
			apiToken = t
		} else if t := os.Getenv("TASKSYNC_TOKEN"); t != "" {
			apiToken = t
		}
	}
}

// makeRequest sends one HTTP request to the TaskSync service.
func makeRequest(method, path string, body interface{}) (*http.Response, error) {
	client := &http.Client{Timeout: timeout}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := fmt.Sprintf("http://%s%s", serverAddr, path)
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}

	return client.Do(req)
}

// readResponse decodes the response body into v after checking the status.
func readResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// printOutput prints the response in the requested format
func printOutput(v interface{}) {
	if outputJSON {
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to format output: %v\n", err)
			return
		}
		fmt.Println(string(jsonData))
		return
	}
	fmt.Printf("%v\n", v)
}
