package cmd

import (
	"fmt"
	"os"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string

	registerProfile users.Profile
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with a username and password. The password may also be given in
FARMADMIN_PASSWORD.

Examples:
  farmadmin login --username admin --password secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		password := loginPassword
		if password == "" {
			password = os.Getenv("FARMADMIN_PASSWORD")
		}
		user, err := a.Auth.Login(cmd.Context(), users.Credentials{Username: loginUsername, Password: password})
		if err != nil {
			return errors.New(errorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.DisplayName())
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.Auth.Register(cmd.Context(), registerProfile)
		if err != nil {
			return errors.New(errorText(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s, sign in with \"farmadmin login\"\n", user.Username)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap := a.Session.Snapshot()
		if !snap.IsAuthenticated() {
			return errors.New("not logged in")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", snap.User.DisplayName(), snap.User.Email)
		if snap.User.IsAdmin {
			fmt.Fprintln(out, "  role: admin")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Auth.Logout(); err != nil {
			return errors.Wrap(err, "[logout]")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (default: $FARMADMIN_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("username")

	registerCmd.Flags().StringVar(&registerProfile.Username, "username", "", "username")
	registerCmd.Flags().StringVar(&registerProfile.Email, "email", "", "email address")
	registerCmd.Flags().StringVar(&registerProfile.FullName, "full-name", "", "full name")
	registerCmd.Flags().StringVar(&registerProfile.Password, "password", "", "password")

	rootCmd.AddCommand(loginCmd, registerCmd, whoamiCmd, logoutCmd)
}
