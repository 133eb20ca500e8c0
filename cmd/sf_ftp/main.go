// Command sf_ftp is the push-side FTP worker FD forks per §6's
// "Worker invocation" contract: it ships every file under a job's
// spool directory to the host named by its fsa_id argument, then
// reports completion on the fin-FIFO and exits with the matching
// sf_xxx exit code.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	ftpclient "github.com/hfs/afd-sub000/internal/transfer/ftp"
	"github.com/hfs/afd-sub000/internal/workerio"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

func main() {
	args, err := workerio.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_ftp:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	host, err := workerio.LoadHostConfig(args.WorkDir, args.FSAID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_ftp:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	spoolDir := filepath.Join(args.WorkDir, "files", "outgoing", args.Target)
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_ftp:", err)
		workerio.Exit(xferstatus.OpenFileDirError)
	}

	opt := ftpclient.Options{
		Host:    host.RemoteHost,
		Port:    host.Port,
		User:    host.User,
		Pass:    host.Password,
		Retries: 1,
	}
	if args.RetryCount > 0 {
		opt.Retries = args.RetryCount
	}

	code := xferstatus.TransferSuccess
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		local := filepath.Join(spoolDir, e.Name())
		if err := ftpclient.Put(opt, e.Name(), local); err != nil {
			fmt.Fprintln(os.Stderr, "sf_ftp:", err)
			code = xferstatus.WriteRemoteError
			break
		}
	}

	if code == xferstatus.TransferSuccess {
		if err := os.RemoveAll(spoolDir); err != nil {
			fmt.Fprintln(os.Stderr, "sf_ftp: cleanup:", err)
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "sf_ftp: fin signal:", err)
	}
	workerio.Exit(code)
}
