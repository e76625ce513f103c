// auth.go implements "sitewright login", "signup" and "logout".
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/auth"
)

var emailFlag string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and cache the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(cmd, false)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and cache the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(cmd, true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and drop the cached token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		// Best effort: the local token goes away even if the server call
		// fails.
		if err := a.client.Logout(cmd.Context()); err != nil {
			a.log.Warn("server logout failed", "error", err)
		}
		if err := a.auth.Clear(); err != nil {
			return fmt.Errorf("clearing credentials: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
	signupCmd.Flags().StringVar(&emailFlag, "email", "", "Account email")
}

func runAuth(cmd *cobra.Command, signup bool) error {
	creds, err := promptCredentials()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var resp *api.AuthResponse
	if signup {
		resp, err = a.client.Signup(cmd.Context(), creds)
	} else {
		resp, err = a.client.Login(cmd.Context(), creds)
	}
	if err != nil {
		return err
	}

	if err := a.auth.Save(auth.Credentials{Token: resp.Token, Email: resp.Email}); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	fmt.Printf("Logged in as %s.\n", resp.Email)
	return nil
}

// promptCredentials reads email (unless given via --email) and password.
// The password never echoes on a terminal.
func promptCredentials() (api.Credentials, error) {
	email := emailFlag
	if email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return api.Credentials{}, fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return api.Credentials{}, fmt.Errorf("email is required")
	}

	var password string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return api.Credentials{}, fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return api.Credentials{}, fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}
	if password == "" {
		return api.Credentials{}, fmt.Errorf("password is required")
	}

	return api.Credentials{Email: email, Password: password}, nil
}
