// Command sf_sftp is the push-side SFTP worker (§6, "Worker
// invocation"): ships every file under a job's spool directory over
// SFTP, then reports completion on the fin-FIFO.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	sftpclient "github.com/hfs/afd-sub000/internal/transfer/sftp"
	"github.com/hfs/afd-sub000/internal/workerio"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

func main() {
	args, err := workerio.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_sftp:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	host, err := workerio.LoadHostConfig(args.WorkDir, args.FSAID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_sftp:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	spoolDir := filepath.Join(args.WorkDir, "files", "outgoing", args.Target)
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sf_sftp:", err)
		workerio.Exit(xferstatus.OpenFileDirError)
	}

	opt := sftpclient.Options{
		Host:    host.RemoteHost,
		Port:    host.Port,
		User:    host.User,
		Pass:    host.Password,
		KeyFile: host.KeyFile,
	}

	code := xferstatus.TransferSuccess
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		local := filepath.Join(spoolDir, e.Name())
		if err := sftpclient.Put(opt, e.Name(), local); err != nil {
			fmt.Fprintln(os.Stderr, "sf_sftp:", err)
			code = xferstatus.WriteRemoteError
			break
		}
	}

	if code == xferstatus.TransferSuccess {
		if err := os.RemoveAll(spoolDir); err != nil {
			fmt.Fprintln(os.Stderr, "sf_sftp: cleanup:", err)
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "sf_sftp: fin signal:", err)
	}
	workerio.Exit(code)
}
