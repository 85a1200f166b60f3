package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scheerer/bledom-screen-sync/internal/util"
	"github.com/scheerer/bledom-screen-sync/lights"
	"github.com/scheerer/bledom-screen-sync/screensync"
)

// manual opens the link, applies one manual command and waits until it was
// written or the link gave up.
func (a *app) manual(apply func(c *screensync.Controller) error) error {
	s, err := openLink(a.cfg)
	if err != nil {
		return err
	}
	return a.applyManual(s, apply)
}

func (a *app) applyManual(s *linkSession, apply func(c *screensync.Controller) error) error {
	manual, err := a.cfg.Manual()
	if err != nil {
		s.close(0)
		return err
	}
	settings, err := a.cfg.Sync()
	if err != nil {
		s.close(0)
		return err
	}
	store, err := screensync.NewSettings(settings)
	if err != nil {
		s.close(0)
		return err
	}

	// no capturer: manual commands never start a sync session
	controller, err := screensync.NewController(nil, s.link, store, s.bus, a.cfg.Controller(manual))
	if err != nil {
		s.close(0)
		return err
	}
	if err := apply(controller); err != nil {
		s.close(0)
		return err
	}
	return s.closeDelivered(a.cfg.ConnectTimeout + shutdownTimeout)
}

func (a *app) newColorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "color <hex>",
		Short:   "Set a manual color, e.g. #ff8800",
		Args:    cobra.ExactArgs(1),
		Example: "  bledom-screen-sync color '#00ff80'",
		RunE: func(cmd *cobra.Command, args []string) error {
			color, err := util.ParseHex(args[0])
			if err != nil {
				return err
			}
			logger.With(zap.String("color", args[0])).Info("Setting color")
			return a.manual(func(c *screensync.Controller) error {
				c.SetColor(color)
				return nil
			})
		},
	}
}

func (a *app) newBrightnessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brightness <0-100>",
		Short: "Set the manual brightness",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("%w: brightness %q is not a number", lights.ErrInvalidInput, args[0])
			}
			logger.With(zap.Int("brightness", level)).Info("Setting brightness")
			return a.manual(func(c *screensync.Controller) error {
				return c.SetBrightness(level)
			})
		},
	}
}

func (a *app) newPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "power <on|off>",
		Short:     "Switch the strip on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parsePower(args[0])
			if err != nil {
				return err
			}
			logger.With(zap.Bool("on", on)).Info("Setting power")
			return a.manual(func(c *screensync.Controller) error {
				c.SetPower(on)
				return nil
			})
		},
	}
}

func parsePower(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: power must be on or off, got %q", lights.ErrInvalidInput, v)
	}
}
