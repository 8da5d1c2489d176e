package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("email", "", "login email")
	loginCmd.Flags().String("email", "", "login email")
}

// readPassword prompts for a password without echoing.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		if name == "" || email == "" {
			return fmt.Errorf("--name and --email are required")
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		u, err := c.Register(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (id %d), now run: deudat login --email %s\n", u.Name, u.ID, email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and cache the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := c.Login(cmd.Context(), email, password); err != nil {
			return err
		}
		u, err := c.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("logged in as %s\n", u.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the cached session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()
		return c.Logout()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		u, err := c.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s (id %d)\n", u.Name, u.ID)
		return nil
	},
}
