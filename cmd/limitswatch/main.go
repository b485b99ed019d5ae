package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/limitswatch/limitswatch/internal/config"
)

func main() {
	if os.Getenv("LIMITSWATCH_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	dir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving config dir: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	app := newApp(dir, cfg)

	root := cobra.Command{
		Use:   "limitswatch",
		Short: "LimitsWatch tracks session and weekly quota across AI service accounts.",
	}
	root.AddCommand(
		newProvidersCommand(app),
		newStatusCommand(app),
		newRefreshCommand(app),
		newEnableCommand(app),
		newDisableCommand(app),
		newLoginCommand(app),
		newLogoutCommand(app),
		newHistoryCommand(app),
		newWatchCommand(app),
		newExportCommand(app, app.store),
		newImportCommand(app, app.store),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
