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
	"github.com/srg/rnodeble/pkg/config"
)

var connectDeviceName string

// connectCmd connects to a single RNode and exposes it as a virtual serial
// port until interrupted.
var connectCmd = &cobra.Command{
	Use:   "connect <address>",
	Short: "Connect to an RNode and expose it as a virtual serial port",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectDeviceName, "name", "", "Friendly device name used for the /tmp/cu.<name> symlink (defaults to RNode-<address without colons>)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	address := args[0]

	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	name := connectDeviceName
	if name == "" {
		name = "RNode-" + strings.ReplaceAll(address, ":", "")
	}

	svc := bridgeservice.New(config.DefaultConfig(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, disconnecting...")
		cancel()
	}()

	if err := svc.Connect(ctx, address, name); err != nil {
		return err
	}
	defer svc.Disconnect(address)

	info, err := svc.Info(address)
	if err != nil {
		return err
	}
	fmt.Printf("connected: %s -> %s\n", address, info.SymlinkPath)
	fmt.Println("Press Ctrl+C to disconnect")

	<-ctx.Done()
	return nil
}
