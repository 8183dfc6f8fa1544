package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var callData string

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Resolve where a page path leads for the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintln(cmd.OutOrStdout(), a.Router.Navigate(args[0]))
		return nil
	},
}

var callCmd = &cobra.Command{
	Use:   "call <method> <path>",
	Short: "Make an authenticated API call",
	Long: `Send a request to the API with the session credential attached and print
the JSON response. A rejected credential clears the stored session.

Examples:
  farmadmin call GET /posts
  farmadmin call POST /posts --data '{"title":"hello"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var body any
		if callData != "" {
			if !json.Valid([]byte(callData)) {
				return errors.New("--data is not valid JSON")
			}
			body = json.RawMessage(callData)
		}

		var out json.RawMessage
		err = a.API.Do(cmd.Context(), strings.ToUpper(args[0]), args[1], body, &out)
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return errors.Errorf("session rejected, now at %s", a.Router.Current())
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// errorText is the message shown for a failed auth operation.
func errorText(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return err.Error()
}

func init() {
	callCmd.Flags().StringVarP(&callData, "data", "d", "", "JSON request body")
	rootCmd.AddCommand(openCmd, callCmd)
}
