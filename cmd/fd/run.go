package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	godaemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	fddaemon "github.com/hfs/afd-sub000/internal/daemon"
)

// pidFileName is the go-daemon pidfile FD locks on start and reads on
// stop/status, keyed by FD_LOCK_ID (§6, "exactly one instance per
// work_dir").
func pidFileName(workDir string) string {
	return filepath.Join(workDir, "fd.pid")
}

func logFileName(workDir string) string {
	return filepath.Join(workDir, "log", "fd.log")
}

func runStart(cmd *cobra.Command, args []string) error {
	workDir := workDirFlag
	if err := os.MkdirAll(filepath.Join(workDir, "log"), 0o755); err != nil {
		return fmt.Errorf("fd: create log dir: %w", err)
	}

	if !foregroundFlag {
		ctx := &godaemon.Context{
			PidFileName: pidFileName(workDir),
			PidFilePerm: 0o644,
			LogFileName: logFileName(workDir),
			LogFilePerm: 0o640,
			WorkDir:     workDir,
			Umask:       0o027,
		}
		child, err := ctx.Reborn()
		if err != nil {
			return fmt.Errorf("fd: daemonize: %w", err)
		}
		if child != nil {
			// Parent process: the daemon is now running independently.
			fmt.Printf("fd: started (pid %d)\n", child.Pid)
			return nil
		}
		defer ctx.Release()
	}

	return runForeground(workDir)
}

func runForeground(workDir string) error {
	opts := fddaemon.Options{
		WorkDir:    fddaemon.WorkDir{Root: workDir},
		ConfigPath: resolvedConfigPath(),
		MaxHosts:   maxHostsFlag,
		JobIDTable: newJobIDTable(filepath.Join(workDir, "etc", "JOB_ID_TABLE")),
		RetrieveOn: retrieveFlag,
	}

	d, err := fddaemon.New(opts)
	if err != nil {
		return fmt.Errorf("fd: initialize: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	workDir := workDirFlag
	cntxt := &godaemon.Context{PidFileName: pidFileName(workDir)}
	proc, err := cntxt.Search()
	if err != nil {
		return fmt.Errorf("fd: no running daemon found in %s: %w", workDir, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("fd: signal daemon: %w", err)
	}
	fmt.Printf("fd: stop signal sent to pid %d\n", proc.Pid)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	workDir := workDirFlag
	cntxt := &godaemon.Context{PidFileName: pidFileName(workDir)}
	proc, err := cntxt.Search()
	if err != nil {
		fmt.Println("fd: not running")
		return nil
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		fmt.Println("fd: not running (stale pidfile)")
		return nil
	}
	fmt.Printf("fd: running (pid %d)\n", proc.Pid)
	return nil
}
