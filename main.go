package main

import (
	"go.uber.org/zap"

	"github.com/scheerer/bledom-screen-sync/cmd"
	"github.com/scheerer/bledom-screen-sync/internal/logging"
)

var logger = logging.New("main")

func main() {
	defer logger.Sync()

	if err := cmd.Execute(); err != nil {
		logger.With(zap.Error(err)).Fatal("Command failed")
	}
}
