// auth.go implements login, signup, logout and whoami.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devmate-dev/devmate/internal/backend"
)

var (
	emailFlag    string
	usernameFlag string
	passwordFlag string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	Long: `Log in with an email (or a username on older backends) and password.
Missing values are prompted for. The token is kept in the local store until
you log out.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long:  `Create an account. Signing up does not log you in.`,
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "Account email")
		c.Flags().StringVar(&usernameFlag, "username", "", "Account username")
		c.Flags().StringVar(&passwordFlag, "password", "", "Account password (prompted when omitted)")
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	creds := backend.Credentials{Email: emailFlag, Username: usernameFlag, Password: passwordFlag}
	if creds.Identifier() == "" {
		if creds.Email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = p.password("Password: "); err != nil {
			return err
		}
	}
	if creds.Identifier() == "" || creds.Password == "" {
		return errors.New("email and password are required")
	}

	sess, err := env.session.Login(cmd.Context(), creds)
	if err != nil {
		return err
	}
	// A new login starts from a fresh draft with no cached history, which
	// may belong to another account.
	if err := env.setActiveConversation(""); err != nil {
		return err
	}
	if err := env.chat.Forget(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", sess.Username)
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	account := backend.NewAccount{Username: usernameFlag, Email: emailFlag, Password: passwordFlag}
	if account.Username == "" {
		if account.Username, err = p.line("Username: "); err != nil {
			return err
		}
	}
	if account.Email == "" {
		if account.Email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	if account.Password == "" {
		if account.Password, err = p.password("Password: "); err != nil {
			return err
		}
	}
	if account.Username == "" || account.Password == "" {
		return errors.New("username and password are required")
	}

	msg, err := env.session.Signup(cmd.Context(), account)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	env.session.Logout()
	if err := env.setActiveConversation(""); err != nil {
		return err
	}
	if err := env.chat.Forget(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	sess, err := env.requireSession()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sess.Username)
	return nil
}
