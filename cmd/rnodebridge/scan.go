package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/rnodeble/internal/discovery"
	"github.com/srg/rnodeble/pkg/config"
)

var (
	scanDuration time.Duration
	scanFormat   string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby RNode devices",
	Long: `Scan for Bluetooth Low Energy RNode peripherals in the vicinity and
display their address, name, RSSI, and connection status.`,
	RunE: runScan,
}

func init() {
	defaults := config.DefaultConfig()
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", defaults.ScanTimeout, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", defaults.OutputFormat, "Output format (table, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	validFormats := []string{"table", "json"}
	valid := false
	for _, f := range validFormats {
		if scanFormat == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid format '%s': must be one of %v", scanFormat, validFormats)
	}

	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	d := discovery.New(logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	opts := &discovery.ScanOptions{Duration: scanDuration, DuplicateFilter: true}
	devices, err := d.Scan(ctx, opts, func(phase string) { fmt.Fprintf(os.Stderr, "scan: %s\n", phase) })
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return displayDevices(devices)
}

func displayDevices(devices map[string]*discovery.Device) error {
	if len(devices) == 0 {
		fmt.Println("No RNode devices discovered")
		return nil
	}

	list := make([]*discovery.Device, 0, len(devices))
	for _, dev := range devices {
		list = append(list, dev)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DisplayName < list[j].DisplayName })

	if scanFormat == "json" {
		var w io.Writer = os.Stdout
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCONNECTED")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, dev := range list {
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%t\n", dev.DisplayName, dev.Address, dev.LastRSSI, dev.Connected)
	}
	return w.Flush()
}
