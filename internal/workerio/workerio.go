// Package workerio implements the argv parsing and fin-FIFO reporting
// contract every sf_*/gf_* worker binary shares (§6, "Worker
// invocation"). FD itself never imports this package's callers —
// workers are independent processes started via os/exec — but they
// share this one small library so the wire contract stays in one
// place instead of being hand-rolled six times.
package workerio

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/go-ini/ini"

	"github.com/hfs/afd-sub000/internal/xferstatus"
)

// Args is a worker's parsed argument vector: program, work_dir,
// job_subindex, fsa_id, fsa_pos, target, plus the optional flags.
type Args struct {
	WorkDir     string
	JobSubindex int
	FSAID       string
	FSAPos      int
	Target      string // msg_name (push) or dir_alias (pull)

	NoArchive  bool
	Resend     bool
	TempToggle bool
	AgeLimit   int64
	SMTPFrom   string
	SMTPServer string
	RetryCount int
}

// ParseArgs decodes os.Args[1:] per the §6 worker invocation contract.
func ParseArgs(argv []string) (Args, error) {
	if len(argv) < 5 {
		return Args{}, fmt.Errorf("workerio: need at least 5 positional arguments, got %d", len(argv))
	}
	var a Args
	a.WorkDir = argv[0]
	subindex, err := strconv.Atoi(argv[1])
	if err != nil {
		return Args{}, fmt.Errorf("workerio: bad job_subindex %q: %w", argv[1], err)
	}
	a.JobSubindex = subindex
	a.FSAID = argv[2]
	fsaPos, err := strconv.Atoi(argv[3])
	if err != nil {
		return Args{}, fmt.Errorf("workerio: bad fsa_pos %q: %w", argv[3], err)
	}
	a.FSAPos = fsaPos
	a.Target = argv[4]

	rest := argv[5:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "-A":
			a.NoArchive = true
		case "-r":
			a.Resend = true
		case "-t":
			a.TempToggle = true
		case "-a":
			i++
			if i >= len(rest) {
				return Args{}, fmt.Errorf("workerio: -a needs a value")
			}
			v, err := strconv.ParseInt(rest[i], 10, 64)
			if err != nil {
				return Args{}, fmt.Errorf("workerio: bad age_limit %q: %w", rest[i], err)
			}
			a.AgeLimit = v
		case "-f":
			i++
			if i >= len(rest) {
				return Args{}, fmt.Errorf("workerio: -f needs a value")
			}
			a.SMTPFrom = rest[i]
		case "-s":
			i++
			if i >= len(rest) {
				return Args{}, fmt.Errorf("workerio: -s needs a value")
			}
			a.SMTPServer = rest[i]
		case "-o":
			i++
			if i >= len(rest) {
				return Args{}, fmt.Errorf("workerio: -o needs a value")
			}
			v, err := strconv.Atoi(rest[i])
			if err != nil {
				return Args{}, fmt.Errorf("workerio: bad retry_count %q: %w", rest[i], err)
			}
			a.RetryCount = v
		default:
			return Args{}, fmt.Errorf("workerio: unrecognized flag %q", rest[i])
		}
	}
	return a, nil
}

// SignalFin reports completion on the fin-FIFO: a 4-byte little-endian
// pid, positive for a normal exit the lifecycle manager should reap
// via zombie-check. Workers that support burst mode instead call
// SignalBurstReady while still running.
func SignalFin(fifoPath string, pid int) error {
	return writeFin(fifoPath, int32(pid))
}

// SignalBurstReady announces a worker is idle and ready for another
// job on its existing connection (§4.6) without exiting: the same
// fin-FIFO record with the pid negated.
func SignalBurstReady(fifoPath string, pid int) error {
	return writeFin(fifoPath, -int32(pid))
}

func writeFin(fifoPath string, pid int32) error {
	if fifoPath == "" {
		return nil
	}
	f, err := os.OpenFile(fifoPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("workerio: open fin fifo: %w", err)
	}
	defer f.Close()
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], uint32(pid))
	_, err = f.Write(raw[:])
	return err
}

// Exit reports code as the worker's exit status, matching the
// sf_xxx/gf_xxx exit-code table xferstatus.Classify decodes.
func Exit(code xferstatus.Code) {
	os.Exit(int(code))
}

// FinFIFOPath is the well-known path a worker finds its fin-FIFO at,
// relative to work_dir (§6): <work_dir>/fifodir/sf_fin_fifo.
func FinFIFOPath(workDir string) string {
	return workDir + "/fifodir/sf_fin_fifo"
}

// HostConfig is the subset of a host's entry in HOST_CONFIG a worker
// needs to open its own connection. FD itself never parses this file
// (§1 Non-goals: "neither manages user credentials nor parses host
// configuration") — each worker binary reads it independently, keyed
// by the fsa_id argv gives it.
type HostConfig struct {
	RemoteHost string
	Port       string
	User       string
	Password   string
	KeyFile    string
}

// LoadHostConfig reads <work_dir>/etc/HOST_CONFIG and returns the
// section named fsaID.
func LoadHostConfig(workDir, fsaID string) (HostConfig, error) {
	f, err := ini.Load(workDir + "/etc/HOST_CONFIG")
	if err != nil {
		return HostConfig{}, fmt.Errorf("workerio: load host config: %w", err)
	}
	sec, err := f.GetSection(fsaID)
	if err != nil {
		return HostConfig{}, fmt.Errorf("workerio: no host config section %q: %w", fsaID, err)
	}
	return HostConfig{
		RemoteHost: sec.Key("remote_host").String(),
		Port:       sec.Key("port").String(),
		User:       sec.Key("user").String(),
		Password:   sec.Key("password").String(),
		KeyFile:    sec.Key("key_file").String(),
	}, nil
}

// DirConfig is the subset of a retrieve directory's entry in
// DIR_CONFIG a pull-side worker needs: where to fetch from and where
// locally incoming files land.
type DirConfig struct {
	RemoteHost string
	Port       string
	User       string
	Password   string
	RemoteDir  string
	LocalDir   string
}

// LoadDirConfig reads <work_dir>/etc/DIR_CONFIG and returns the
// section named dirAlias.
func LoadDirConfig(workDir, dirAlias string) (DirConfig, error) {
	f, err := ini.Load(workDir + "/etc/DIR_CONFIG")
	if err != nil {
		return DirConfig{}, fmt.Errorf("workerio: load dir config: %w", err)
	}
	sec, err := f.GetSection(dirAlias)
	if err != nil {
		return DirConfig{}, fmt.Errorf("workerio: no dir config section %q: %w", dirAlias, err)
	}
	return DirConfig{
		RemoteHost: sec.Key("remote_host").String(),
		Port:       sec.Key("port").String(),
		User:       sec.Key("user").String(),
		Password:   sec.Key("password").String(),
		RemoteDir:  sec.Key("remote_dir").String(),
		LocalDir:   sec.Key("local_dir").String(),
	}, nil
}
