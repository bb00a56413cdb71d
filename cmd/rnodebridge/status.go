package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/srg/rnodeble/internal/bridgeservice"
	"github.com/srg/rnodeble/internal/discovery"
	"github.com/srg/rnodeble/pkg/config"
)

// statusCmd runs a short scan and reports what it sees; it does not attach
// to a separately-running `rnodebridge run` process (there is no IPC layer
// for that).
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Scan once and report discovered RNode devices",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	svc := bridgeservice.New(config.DefaultConfig(), logger)
	if _, err := svc.Scan(context.Background(), nil); err != nil {
		return err
	}

	status := svc.Status()
	fmt.Printf("running: %t (uptime %s)\n", status.Running, status.Uptime)
	fmt.Printf("discovered: %d\n", len(status.Discovered))

	devs := make([]discovery.Device, len(status.Discovered))
	copy(devs, status.Discovered)
	sort.Slice(devs, func(i, j int) bool { return devs[i].DisplayName < devs[j].DisplayName })
	for _, d := range devs {
		fmt.Printf("  %s  %s  %d dBm  connected=%t\n", d.Address, d.DisplayName, d.LastRSSI, d.Connected)
	}

	if len(status.Bridges) > 0 {
		fmt.Println("bridges:")
		for _, b := range status.Bridges {
			fmt.Printf("  %s  state=%s  symlink=%s\n", b.Address, b.State, b.SymlinkPath)
		}
	}
	return nil
}
