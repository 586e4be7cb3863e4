// Solar Bridge exposes an MPP Solar inverter as a smart-home accessory.
//
// The daemon polls the inverter over its USB HID link, keeps an accessory
// tree of services and characteristics up to date, and serves it over a JSON
// and WebSocket API, MQTT and mDNS. Writes from clients become inverter
// commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(ctx).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
