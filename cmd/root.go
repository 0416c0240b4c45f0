package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/waseemkhan00777/askify-gemini/internal/config"
)

var (
	v       = viper.New()
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "askify",
	Short: "Stream answers from a hosted model to your browser",
	Long: `askify relays a prompt to a generative model (Gemini by default) and
streams the reply back as it is produced. Run "askify serve" for the web
page and HTTP API, or "askify chat" to talk to a running server from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(envFile); err != nil {
			return err
		}
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		return nil
	},
}

func init() {
	config.SetDefaults(v)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// loadDotEnv loads path into the process environment. Variables that are
// already set win, and a missing file is fine.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
