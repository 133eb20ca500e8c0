// Command gf_ftp is the pull-side FTP worker (§4.5, §6): lists the
// remote directory a retrieve entry names and fetches every file into
// the local incoming spool, then reports completion on the fin-FIFO.
package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	ftpclient "github.com/hfs/afd-sub000/internal/transfer/ftp"
	"github.com/hfs/afd-sub000/internal/workerio"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

func main() {
	args, err := workerio.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "gf_ftp:", err)
		workerio.Exit(xferstatus.SyntaxError)
	}

	dir, err := workerio.LoadDirConfig(args.WorkDir, args.Target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gf_ftp:", err)
		workerio.Exit(xferstatus.PasswordError)
	}

	opt := ftpclient.Options{
		Host:    dir.RemoteHost,
		Port:    dir.Port,
		User:    dir.User,
		Pass:    dir.Password,
		Retries: 1,
	}
	if args.RetryCount > 0 {
		opt.Retries = args.RetryCount
	}

	names, err := ftpclient.List(opt, dir.RemoteDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gf_ftp:", err)
		workerio.Exit(xferstatus.ListError)
	}

	localDir := dir.LocalDir
	if localDir == "" {
		localDir = filepath.Join(args.WorkDir, "files", "incoming", args.Target)
	}
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "gf_ftp:", err)
		workerio.Exit(xferstatus.OpenLocalError)
	}

	code := xferstatus.TransferSuccess
	for _, name := range names {
		remote := path.Join(dir.RemoteDir, name)
		local := filepath.Join(localDir, name)
		if err := ftpclient.Get(opt, remote, local); err != nil {
			fmt.Fprintln(os.Stderr, "gf_ftp:", err)
			code = xferstatus.ReadRemoteError
			break
		}
	}

	finFIFO := workerio.FinFIFOPath(args.WorkDir)
	if err := workerio.SignalFin(finFIFO, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, "gf_ftp: fin signal:", err)
	}
	workerio.Exit(code)
}
