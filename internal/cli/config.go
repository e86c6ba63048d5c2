package cli

import (
	"fmt"
	"strconv"

	"github.com/jthake/odrv/internal/config"
	"github.com/jthake/odrv/internal/types"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration operations",
	Long:  "Show and modify the stored configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the config file.

Keys:
  default_profile        Default authentication profile
  default_output_format  Output format (json, table)
  max_retries            Retry count for API operations (0-10)
  retry_base_delay       Backoff base delay in milliseconds
  request_timeout        Request timeout in seconds
  chunk_size             Session upload chunk size in bytes
  max_delta_pages        Page limit for a change-feed walk
  log_level              quiet, normal, verbose, or debug
  color_output           true or false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	return out.WriteSuccess("config show", appConfig)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	out := NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	key, value := args[0], args[1]

	cfg := appConfig
	switch key {
	case "default_profile":
		cfg.DefaultProfile = value
	case "default_output_format":
		cfg.DefaultOutputFormat = types.OutputFormat(value)
	case "max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_retries must be an integer: %w", err)
		}
		cfg.MaxRetries = n
	case "retry_base_delay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("retry_base_delay must be an integer: %w", err)
		}
		cfg.RetryBaseDelay = n
	case "request_timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("request_timeout must be an integer: %w", err)
		}
		cfg.RequestTimeout = n
	case "chunk_size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("chunk_size must be an integer: %w", err)
		}
		cfg.ChunkSize = n
	case "max_delta_pages":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_delta_pages must be an integer: %w", err)
		}
		cfg.MaxDeltaPages = n
	case "log_level":
		cfg.LogLevel = value
	case "color_output":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("color_output must be a boolean: %w", err)
		}
		cfg.ColorOutput = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := cfg.Save(); err != nil {
		return err
	}

	return out.WriteSuccess("config set", map[string]string{
		"key":   key,
		"value": value,
	})
}
