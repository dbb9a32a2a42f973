package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/config"
	"github.com/zhouzirui/receptionist-widget/internal/logging"
)

var (
	apiURL    string
	sessionID string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Talk to the AI receptionist from a terminal",
	Long: `chatcli drives the same conversation engine as the web widget:
replies are revealed as they stream, paced by the tone of your message,
and your name and business type are remembered between runs when
PROFILE_DB_PATH is set.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Receptionist backend base URL (or set API_URL env)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session id (default: a new random id)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(chatCmd, resetCmd)
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig() (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if apiURL != "" {
		cfg.Backend.APIURL = apiURL
	}

	logCfg := config.LogConfig{Level: "warn", Dev: true}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
