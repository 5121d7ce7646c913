package main

import (
	"context"
	"flag"
	"log"

	"stardrift/client/internal/app"
)

func main() {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config overlay")
	flag.StringVar(&opts.Identity, "id", "", "player identity (overrides config)")
	flag.StringVar(&opts.Region, "region", "", "region to join (overrides config)")
	flag.StringVar(&opts.ServerURL, "server", "", "websocket server URL (overrides config)")
	flag.Parse()

	if err := app.Run(context.Background(), opts); err != nil {
		log.Fatalf("%v", err)
	}
}
