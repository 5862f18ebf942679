// config.go implements "devmate config" and "devmate config init".
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/devmate-dev/devmate/internal/config"
)

var forceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after config.yaml, .env and environment
overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&forceFlag, "force", false, "Overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return err
	}
	if apiFlag != "" {
		cfg.API.Root = apiFlag
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", filepath.Join(home, "config.yaml"), data)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	if !forceFlag {
		if _, err := config.ReadConfig(home); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", filepath.Join(home, "config.yaml"))
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	cfg := config.DefaultConfig()
	if apiFlag != "" {
		cfg.API.Root = apiFlag
	}
	if err := config.WriteConfig(home, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filepath.Join(home, "config.yaml"))
	return nil
}
