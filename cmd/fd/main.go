// Command fd is the File Distributor daemon's entry point: a cobra CLI
// exposing start/stop/status the way the teacher's own CLIs wrap a
// long-lived daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	workDirFlag    string
	configFlag     string
	maxHostsFlag   int
	foregroundFlag bool
	retrieveFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:   "fd",
		Short: "File Distributor — the AFD scheduler core",
	}
	root.PersistentFlags().StringVar(&workDirFlag, "work-dir", ".", "AFD working directory (fifodir, files, etc.)")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to AFD_CONFIG (defaults to <work-dir>/etc/AFD_CONFIG)")
	root.PersistentFlags().IntVar(&maxHostsFlag, "max-hosts", 256, "capacity reserved in the host/directory status arrays")
	root.PersistentFlags().BoolVar(&retrieveFlag, "retrieve", true, "enable the retrieve poller")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		RunE:  runStart,
	}
	startCmd.Flags().BoolVar(&foregroundFlag, "foreground", false, "do not fork into the background")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE:  runStop,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a daemon is running",
		RunE:  runStatus,
	}

	root.AddCommand(startCmd, stopCmd, statusCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	return workDirFlag + "/etc/AFD_CONFIG"
}
