// Command sf_http is the push-side HTTP worker (§6, "Worker
// invocation"): PUTs every file under a job's spool directory to the
// host named by fsa_id, then reports completion on the fin-FIFO.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hfs/afd-sub000/internal/transfer/httpclient"
	"github.com/hfs/afd-sub000/internal/workerio"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

func main() {
	args, err := workerio.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_http:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	host, err := workerio.LoadHostConfig(args.WorkDir, args.FSAID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_http:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	spoolDir := filepath.Join(args.WorkDir, "files", "outgoing", args.Target)
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_http:", err)
		workerio.Exit(xferstatus.OpenFileDirError)
	}

	opt := httpclient.Options{BaseURL: "http://" + host.RemoteHost}
	ctx := context.Background()

	code := xferstatus.TransferSuccess
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		local := filepath.Join(spoolDir, e.Name())
		if err := httpclient.Put(ctx, opt, "/"+e.Name(), local); err != nil {
			fmt.Fprintln(os.Stderr, "sf_http:", err)
			code = xferstatus.WriteRemoteError
			break
		}
	}

	if code == xferstatus.TransferSuccess {
		if err := os.RemoveAll(spoolDir); err != nil {
			fmt.Fprintln(os.Stderr, "sf_http: cleanup:", err)
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "sf_http: fin signal:", err)
	}
	workerio.Exit(code)
}
