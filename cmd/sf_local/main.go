// Command sf_local is the push-side local worker (§6, "Worker
// invocation"): moves every file under a job's spool directory into
// the target host's local drop directory, named by fsa_id in
// HOST_CONFIG, then reports completion on the fin-FIFO.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hfs/afd-sub000/internal/transfer/local"
	"github.com/hfs/afd-sub000/internal/workerio"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

func main() {
	args, err := workerio.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_local:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	host, err := workerio.LoadHostConfig(args.WorkDir, args.FSAID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_local:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	spoolDir := filepath.Join(args.WorkDir, "files", "outgoing", args.Target)
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_local:", err)
		workerio.Exit(xferstatus.OpenFileDirError)
	}

	destDir := host.RemoteHost // local protocol: a directory path, not a hostname

	code := xferstatus.TransferSuccess
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(spoolDir, e.Name())
		dst := filepath.Join(destDir, e.Name())
		if err := local.Move(dst, src); err != nil {
			fmt.Fprintln(os.Stderr, "sf_local:", err)
			code = xferstatus.MoveError
			break
		}
	}

	if code == xferstatus.TransferSuccess {
		if err := os.RemoveAll(spoolDir); err != nil {
			fmt.Fprintln(os.Stderr, "sf_local: cleanup:", err)
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "sf_local: fin signal:", err)
	}
	workerio.Exit(code)
}
