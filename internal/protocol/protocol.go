// Package protocol defines the closed set of transfer protocols FD can
// dispatch a worker for, replacing the original's integer protocol code
// with a sum type (see the Design Notes on variant-by-integer-code).
package protocol

import "fmt"

// Variant identifies a transfer protocol.
type Variant int

// The protocol variants a message or retrieve directory may be bound to.
const (
	Unknown Variant = iota
	FTP
	SFTP
	HTTP
	SMTP
	SCP
	WMO
	MAP
	Local
	Loc
)

// String implements fmt.Stringer.
func (v Variant) String() string {
	switch v {
	case FTP:
		return "ftp"
	case SFTP:
		return "sftp"
	case HTTP:
		return "http"
	case SMTP:
		return "smtp"
	case SCP:
		return "scp"
	case WMO:
		return "wmo"
	case MAP:
		return "map"
	case Local:
		return "local"
	case Loc:
		return "loc"
	default:
		return "unknown"
	}
}

// info carries the per-variant defaults the scheduler needs when it has
// no explicit configuration: the worker program to fork and the
// protocol's conventional port.
type info struct {
	pushProgram string
	pullProgram string
	defaultPort int
}

var table = map[Variant]info{
	FTP:   {pushProgram: "sf_ftp", pullProgram: "gf_ftp", defaultPort: 21},
	SFTP:  {pushProgram: "sf_sftp", pullProgram: "gf_sftp", defaultPort: 22},
	HTTP:  {pushProgram: "sf_http", pullProgram: "gf_http", defaultPort: 80},
	SMTP:  {pushProgram: "sf_smtp", defaultPort: 25},
	SCP:   {pushProgram: "sf_scp", defaultPort: 22},
	WMO:   {pushProgram: "sf_wmo", defaultPort: 0},
	MAP:   {pushProgram: "sf_map", defaultPort: 0},
	Local: {pushProgram: "sf_local", pullProgram: "gf_local", defaultPort: 0},
	Loc:   {pushProgram: "sf_loc", defaultPort: 0},
}

// PushProgram returns the sf_xxx program name used to dispatch a push
// (outgoing) job for v.
func (v Variant) PushProgram() string {
	return table[v].pushProgram
}

// PullProgram returns the gf_xxx program name used to dispatch a
// retrieve (pull) job for v. Returns "" if v has no pull-side worker.
func (v Variant) PullProgram() string {
	return table[v].pullProgram
}

// DefaultPort returns the conventional port for v when none was
// configured explicitly.
func (v Variant) DefaultPort() int {
	return table[v].defaultPort
}

// Parse converts a lower-case protocol name (as stored in the job-id
// master table or AFD_CONFIG) into a Variant.
func Parse(name string) (Variant, error) {
	for v, info := range table {
		if info.pushProgram == "sf_"+name || v.String() == name {
			return v, nil
		}
	}
	return Unknown, fmt.Errorf("protocol: unknown variant %q", name)
}
