// Command warpgate runs the reverse-proxy gateway described by a YAML
// configuration file, per spec §6's CLI paragraph.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wrknet/warpgate/app"
	"github.com/wrknet/warpgate/config"
)

func main() {
	configPath := flag.String("config", "./warpgate.yaml", "path to the gateway's YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warpgate: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(*configPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warpgate: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "warpgate: %v\n", err)
		os.Exit(1)
	}
}
