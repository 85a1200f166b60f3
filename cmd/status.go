package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/scheerer/bledom-screen-sync/internal/ble"
	"github.com/scheerer/bledom-screen-sync/internal/config"
	"github.com/scheerer/bledom-screen-sync/internal/lights/bledom"
	"github.com/scheerer/bledom-screen-sync/lights"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

func (a *app) newStatusCmd() *cobra.Command {
	var skipProbe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the effective sync settings and whether the strip is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.effectiveSettings()
			if err != nil {
				return err
			}
			data, err := config.MarshalSettings(settings)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# device %s\n%s", a.cfg.DeviceAddress, data)

			if skipProbe {
				return nil
			}
			transport, err := ble.New(bluetooth.DefaultAdapter, a.cfg.ServiceUUID, a.cfg.WriteUUID)
			if err != nil {
				return err
			}
			state := probe(cmd.Context(), transport, a.cfg.Link())
			fmt.Fprintf(out, "# link %s\n", state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipProbe, "no-probe", false, "Only print settings, do not connect to the strip")
	return cmd
}

// effectiveSettings is the environment overlaid with the settings file, the
// same way sync starts.
func (a *app) effectiveSettings() (screensync.Config, error) {
	base, err := a.cfg.Sync()
	if err != nil {
		return screensync.Config{}, err
	}
	if a.cfg.SettingsFile == "" {
		return base, nil
	}
	settings, err := config.LoadSettings(a.cfg.SettingsFile, base)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	return settings, err
}

func probe(ctx context.Context, transport bledom.Transport, cfg bledom.Config) lights.LinkState {
	if ctx == nil {
		ctx = context.Background()
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = bledom.DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := transport.Connect(ctx, cfg.Address)
	if err != nil {
		logger.With(zap.String("address", cfg.Address), zap.Error(err)).Warn("Strip is not reachable")
		return lights.Disconnected
	}
	defer conn.Close()
	if !conn.Connected() {
		return lights.Disconnected
	}
	return lights.Connected
}
