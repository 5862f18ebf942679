// Package cli defines Cobra command definitions for the devmate CLI.
// This file contains the root command and the global flags.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devmate-dev/devmate/internal/tui"
	"github.com/devmate-dev/devmate/internal/tui/app"
)

var (
	homeFlag  string
	apiFlag   string
	debugFlag bool
	version   = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "devmate",
	Short: "Terminal client for the DevMate assistant",
	Long: `DevMate is a chat client for the DevMate multi-agent assistant.
Run it without arguments in a terminal to open the chat UI, or use the
subcommands to log in, send messages and manage saved conversations.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Without a terminal there is nothing to draw; show help instead.
		if !tui.IsTTY() {
			return cmd.Help()
		}

		env, err := openEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		return tui.Run(app.New(app.Deps{
			Session: env.session,
			Chat:    env.chat,
			Config:  env.cfg,
			Logger:  env.logger,
		}))
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Directory for config, session and logs (default ~/.devmate)")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Backend root URL, overriding config and DEVMATE_API_ROOT")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log every backend request to devmate.log")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(eventsCmd)
}
