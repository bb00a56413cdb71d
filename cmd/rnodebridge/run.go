package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/rnodeble/internal/bridgeservice"
	"github.com/srg/rnodeble/internal/eventbus"
	"github.com/srg/rnodeble/pkg/config"
)

// runCmd starts the Bridge Service with auto-discovery and auto-reconnect,
// connecting every compatible device it finds, and blocks until signaled.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run continuous auto-discovery and bridging",
	Long: `Starts the bridge service: periodically scans for RNode devices,
connects to every one discovered, and keeps reconnecting bridges that drop
until interrupted.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	svc := bridgeservice.New(config.DefaultConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, stopping...")
		cancel()
	}()

	if err := svc.Start(ctx, bridgeservice.DefaultStartOptions()); err != nil {
		return err
	}
	defer svc.Stop()

	go func() {
		for ev := range svc.Events() {
			printEvent(ev)
			if ev.Kind == eventbus.KindDeviceDiscovered {
				name := "RNode-" + strings.ReplaceAll(ev.Address, ":", "")
				if err := svc.Connect(ctx, ev.Address, name); err != nil {
					logger.WithError(err).WithField("address", ev.Address).Warn("rnodebridge: auto-connect failed")
				}
			}
		}
	}()

	fmt.Println("rnodebridge running, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func printEvent(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindDeviceDiscovered:
		fmt.Printf("discovered: %s (%s)\n", ev.Address, ev.Name)
	case eventbus.KindBridgeStateChanged:
		fmt.Printf("bridge %s -> %s\n", ev.Address, ev.State)
	case eventbus.KindVirtualSerialUp:
		fmt.Printf("virtual serial port ready: %s -> %s\n", ev.Address, ev.Symlink)
	case eventbus.KindManagerStarted:
		fmt.Println("bridge service started")
	case eventbus.KindManagerStopped:
		fmt.Println("bridge service stopped")
	}
}
