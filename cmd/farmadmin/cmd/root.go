// Package cmd provides the farmadmin CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-auth-client/app"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "farmadmin",
	Short: "Farm admin session client",
	Long: `farmadmin signs in to the farm admin API and keeps the session across runs.

Configuration:
  Config is loaded from farmadmin.yaml in the current directory or
  $HOME/.farmadmin/. Environment variables override config values with the
  FARMADMIN_ prefix.
  Example: FARMADMIN_API_URL=https://farm.example.com/api

Commands:
  serve       Run the local web shell
  login       Sign in and store the session
  register    Create an account
  whoami      Show the signed in user
  logout      Clear the stored session
  open        Resolve where a page path leads for the current session
  call        Make an authenticated API call
  version     Print version information`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitViper(cfgFile); err != nil {
			return err
		}
		c := config.New()
		logging.New(c.GetLogLevel(), c.GetEnv())
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./farmadmin.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("api-url", "", "farm admin API base URL")
	rootCmd.PersistentFlags().String("store", "", "credential store driver (file, sqlite, memory)")
	_ = viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("API_URL", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("STORE_DRIVER", rootCmd.PersistentFlags().Lookup("store"))
}

// openApp builds the app from configuration and resumes any stored session.
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(config.New())
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "[openApp] start")
	}
	return a, nil
}
