package main

import (
	"log/slog"
	"os"

	"github.com/odyssey-erp/finledger/cmd/finledger/cli"
	"github.com/odyssey-erp/finledger/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
