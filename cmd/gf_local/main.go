// Command gf_local is the pull-side local worker (§4.5, §6): copies
// every file out of a locally mounted source directory into the
// incoming spool, then reports completion on the fin-FIFO.
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
		fmt.Fprintln(os.Stderr, "gf_local:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	dir, err := workerio.LoadDirConfig(args.WorkDir, args.Target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gf_local:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	entries, err := os.ReadDir(dir.RemoteDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gf_local:", err)
		workerio.Exit(xferstatus.OpenFileDirError)
	}

	localDir := dir.LocalDir
	if localDir == "" {
		localDir = filepath.Join(args.WorkDir, "files", "incoming", args.Target)
	}

	code := xferstatus.TransferSuccess
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(dir.RemoteDir, e.Name())
		dst := filepath.Join(localDir, e.Name())
		if err := local.Move(dst, src); err != nil {
			fmt.Fprintln(os.Stderr, "gf_local:", err)
			code = xferstatus.MoveError
			break
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "gf_local: fin signal:", err)
	}
	workerio.Exit(code)
}
