package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ministryhub/checkin-rollup/pkg/app"
	"github.com/ministryhub/checkin-rollup/pkg/app/rollup"
	"github.com/ministryhub/checkin-rollup/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = rollup.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Rollup server exited: %v\n", err)
		os.Exit(1)
	}
}
