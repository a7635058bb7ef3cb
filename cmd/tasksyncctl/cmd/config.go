package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tasksyncctl configuration",
}

// configViewCmd represents the config view command
var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if outputJSON {
			config := map[string]interface{}{
				"server":  viper.GetString("server"),
				"timeout": viper.GetDuration("timeout").String(),
				"json":    viper.GetBool("json"),
			}
			printOutput(config)
			return
		}
		fmt.Println("Current configuration:")
		fmt.Printf("  Server: %s\n", viper.GetString("server"))
		fmt.Printf("  Timeout: %s\n", viper.GetDuration("timeout"))
		fmt.Printf("  JSON Output: %v\n", viper.GetBool("json"))
		if viper.ConfigFileUsed() != "" {
			fmt.Printf("  Config file: %s\n", viper.ConfigFileUsed())
		} else {
			fmt.Println("  Config file: none (using defaults)")
		}
	},
}

// configSetCmd represents the config set command
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the config file.

Examples:
  tasksyncctl config set server localhost:8080
  tasksyncctl config set timeout 60s
  tasksyncctl config set json true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		validKeys := map[string]bool{
			"server":  true,
			"timeout": true,
			"json":    true,
			"token":   true,
		}
		if !validKeys[key] {
			return fmt.Errorf("invalid configuration key: %s. Valid keys are: server, timeout, json, token", key)
		}

		switch key {
		case "json":
			switch value {
			case "true", "1", "yes", "on":
				viper.Set(key, true)
			case "false", "0", "no", "off":
				viper.Set(key, false)
			default:
				return fmt.Errorf("invalid boolean value for %s: %s (use true/false)", key, value)
			}
		case "timeout":
			if dur, err := time.ParseDuration(value); err == nil {
				viper.Set(key, dur)
			} else {
				viper.Set(key, value)
			}
		default:
			viper.Set(key, value)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath := filepath.Join(home, ".tasksyncctl.yaml")
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		fmt.Printf("Configuration saved to: %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
}
