// Package xferstatus classifies a worker's exit status into the
// outcome classes the worker-lifecycle manager acts on, decoupling
// exit-code policy from the zombie-check code path (see the Design
// Notes: "a classification function ... decoupling policy from the
// code table"). The newer src/fd/fd.c variant named authoritative by
// the Open Questions is the one implemented here.
package xferstatus

// Code is a worker's process exit code, matching the sf_xxx/gf_xxx
// exit-code table.
type Code int

// Exit codes, mirroring original_source/src/fd/fd.c's WEXITSTATUS switch.
const (
	TransferSuccess Code = 0
	StillFilesToSend Code = iota + 9
	SyntaxError
	NoMessageFile
	JIDNumberError
	OpenFileDirError
	MailError
	TimeoutError
	ConnectionResetError
	ConnectError
	UserError
	TypeError
	ListError
	RemoteUserError
	DataError
	ReadLocalError
	WriteRemoteError
	WriteLocalError
	ReadRemoteError
	SizeError
	DateError
	OpenLocalError
	WriteLockError
	ChownError
	RemoveLockfileError
	QuitError
	RenameError
	SelectError
	PasswordError
	ChdirError
	CloseRemoteError
	MkdirError
	MoveError
	MoveRemoteError
	OpenRemoteError
	StatError
	LockRegionError
	UnlockRegionError
	GotKilled
	NoFilesToSend
)

// Faulty is the classification of an exit outcome; it drives the
// reschedule policy of §4.4.
type Faulty int

const (
	// FaultyNo means the transfer succeeded; drop the queue entry.
	FaultyNo Faulty = iota
	// FaultyYes means the job should be retried from PENDING, with
	// host-level error bookkeeping applied.
	FaultyYes
	// FaultyNone means retry from PENDING but skip error bookkeeping
	// (e.g. the process was killed by FD itself, or it reports it
	// still has files to send).
	FaultyNone
	// FaultyNeither means leave the entry exactly as-is: still
	// running, or the child has not yet been reaped.
	FaultyNeither
)

// Disposition is the result of classifying an exit code: whether the
// job is faulty, whether it decays queue priority, and whether it
// should be dropped quietly without logging a retry.
type Disposition struct {
	Faulty       Faulty
	Decay        bool // apply the priority-decay of §4.2
	QuietDrop    bool // NO_FILES_TO_SEND / JID_NUMBER_ERROR / OPEN_FILE_DIR_ERROR
	ClearHistory bool // NO_FILES_TO_SEND: reset error-counter history
}

// permanentQuiet are codes dropped without retry and without being
// logged as an error — the job is gone, not failed.
var permanentQuiet = map[Code]bool{
	JIDNumberError:   true,
	OpenFileDirError: true,
}

// decaying are the "auth-ish" codes that additionally bump queue
// priority (§4.2) so other hosts are scheduled ahead of a host that is
// failing for what looks like a configuration reason.
var decaying = map[Code]bool{
	PasswordError:    true,
	ChdirError:       true,
	CloseRemoteError: true,
	MkdirError:       true,
	MoveError:        true,
	MoveRemoteError:  true,
	OpenRemoteError:  true,
}

// transient are retryable codes that do not decay priority, only set
// first_error_time if unset.
var transient = map[Code]bool{
	TimeoutError:         true,
	ConnectionResetError: true,
	ConnectError:         true,
	UserError:            true,
	TypeError:            true,
	ListError:            true,
	RemoteUserError:      true,
	DataError:            true,
	ReadLocalError:       true,
	WriteRemoteError:     true,
	WriteLocalError:      true,
	ReadRemoteError:      true,
	SizeError:            true,
	DateError:            true,
	OpenLocalError:       true,
	WriteLockError:       true,
	ChownError:           true,
	RemoveLockfileError:  true,
	QuitError:            true,
	RenameError:          true,
	SelectError:          true,
	StatError:            true,
	LockRegionError:      true,
	UnlockRegionError:    true,
	MailError:            true,
	SyntaxError:          true,
}

// Classify turns a raw worker exit code into a Disposition. signaled
// is true when the process was terminated by a signal rather than
// exiting normally (WIFSIGNALED in the original); unknown codes and
// signaled termination are both treated as faulty with a zeroed job
// slot, matching the original's default case.
func Classify(code Code, signaled bool) Disposition {
	if signaled {
		return Disposition{Faulty: FaultyYes}
	}
	switch {
	case code == TransferSuccess:
		return Disposition{Faulty: FaultyNo}
	case code == StillFilesToSend:
		// Newer src/fd/fd.c returns NONE here, not NO (§9 Open Questions).
		return Disposition{Faulty: FaultyNone}
	case code == GotKilled:
		return Disposition{Faulty: FaultyNone}
	case code == NoFilesToSend:
		return Disposition{Faulty: FaultyNo, QuietDrop: true, ClearHistory: true}
	case permanentQuiet[code]:
		return Disposition{Faulty: FaultyNo, QuietDrop: true}
	case decaying[code]:
		return Disposition{Faulty: FaultyYes, Decay: true}
	case transient[code]:
		return Disposition{Faulty: FaultyYes}
	default:
		return Disposition{Faulty: FaultyYes}
	}
}
