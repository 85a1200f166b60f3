// Package cmd holds the command line surface: screen sync plus one-shot manual
// control of the strip.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scheerer/bledom-screen-sync/internal/config"
	"github.com/scheerer/bledom-screen-sync/internal/logging"
)

var logger = logging.New("main")

// app carries the configuration loaded before any subcommand runs.
type app struct {
	cfg config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bledom-screen-sync",
		Short: "Drive an ELK-BLEDOM LED strip from the colors on screen",
		Long: `Samples the screen, turns it into one color and streams it to an ELK-BLEDOM ` +
			`Bluetooth LED strip. Configuration is read from the environment; see the sync command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.GetLeveler().SetAll(logging.ParseLevel(cfg.LogLevel))
			return nil
		},
	}

	root.AddCommand(
		a.newSyncCmd(),
		a.newColorCmd(),
		a.newBrightnessCmd(),
		a.newPowerCmd(),
		a.newStatusCmd(),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
