// Package intake implements the Intake Demultiplexer (§4.7-4.9, §6):
// six control FIFOs, each read by its own goroutine that decodes a
// fixed wire format and forwards the decoded value onto a channel the
// single event-loop goroutine selects over. No reader goroutine
// touches QB/MDB/the connection table directly (§5).
package intake

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// CommandOp is a single-byte opcode read from FD_CMD_FIFO (§4.7).
type CommandOp byte

const (
	CheckFileDir        CommandOp = 1
	FSAAboutToChange    CommandOp = 2
	ForceRemoteDirCheck CommandOp = 3
	SaveStop            CommandOp = 4
	Stop                CommandOp = 5
	QuickStop           CommandOp = 6
)

// IntakeMessage is one fixed-size binary record read from MSG_FIFO
// (§6, "Intake message block fields").
type IntakeMessage struct {
	CreationTime   int64
	JobID          uint32
	SplitCounter   uint32
	FilesToSend    uint32
	FileSizeToSend int64
	DirNumber      uint16
	UniqueNumber   uint16
	Priority       byte
	Originator     byte
}

const intakeMessageSize = 8 + 4 + 4 + 4 + 8 + 2 + 2 + 1 + 1

// FinSignal is one pid_t read from SF_FIN_FIFO. A negative PID means
// the worker is ready for burst reassignment (§4.6); a positive PID
// means normal exit.
type FinSignal struct {
	PID int32
}

// Paths names the six FIFOs, all created under fifodir if absent.
type Paths struct {
	Command string
	Msg     string
	Fin     string
	WakeUp  string
	Retry   string
	Delete  string
}

// Demux owns the six FIFO readers and the channels the main event
// loop selects over.
type Demux struct {
	Commands chan CommandOp
	Messages chan IntakeMessage
	Fins     chan FinSignal
	WakeUps  chan struct{}
	Retries  chan int32 // 4-byte FSA index (§6, RETRY_FD_FIFO)
	Deletes  chan []string

	errs chan error
}

// NewDemux allocates a Demux with reasonably buffered channels so a
// burst of intake traffic does not block the reader goroutines.
func NewDemux() *Demux {
	return &Demux{
		Commands: make(chan CommandOp, 16),
		Messages: make(chan IntakeMessage, 256),
		Fins:     make(chan FinSignal, 256),
		WakeUps:  make(chan struct{}, 16),
		Retries:  make(chan int32, 16),
		Deletes:  make(chan []string, 16),
		errs:     make(chan error, 8),
	}
}

// Errs reports decode/IO errors observed by reader goroutines; the
// event loop logs these to the system log.
func (d *Demux) Errs() <-chan error { return d.errs }

// Start creates any missing FIFOs and launches one reader goroutine
// per FIFO. It returns immediately; readers run until their FIFO is
// closed or the process exits.
func (d *Demux) Start(paths Paths) error {
	for _, p := range []string{paths.Command, paths.Msg, paths.Fin, paths.WakeUp, paths.Retry, paths.Delete} {
		if p == "" {
			continue
		}
		if err := ensureFIFO(p); err != nil {
			return fmt.Errorf("intake: mkfifo %s: %w", p, err)
		}
	}

	go d.readCommands(paths.Command)
	go d.readMessages(paths.Msg)
	go d.readFins(paths.Fin)
	go d.readWakeUps(paths.WakeUp)
	go d.readRetries(paths.Retry)
	go d.readDeletes(paths.Delete)
	return nil
}

func ensureFIFO(path string) error {
	err := unix.Mkfifo(path, 0o600)
	if err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// openFIFOReader opens a FIFO for reading, reopening it whenever a
// writer closes its end (a FIFO reader sees EOF once all writers
// close, unlike a socket) so the demultiplexer survives a restarted
// job-generator or command-line client.
func openFIFOReader(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY, os.ModeNamedPipe)
}

func (d *Demux) readCommands(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open command fifo: %w", err)
			return
		}
		buf := make([]byte, 1)
		r := bufio.NewReader(f)
		for {
			if _, err := io.ReadFull(r, buf); err != nil {
				break
			}
			d.Commands <- CommandOp(buf[0])
		}
		f.Close()
	}
}

func (d *Demux) readMessages(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open msg fifo: %w", err)
			return
		}
		r := bufio.NewReader(f)
		raw := make([]byte, intakeMessageSize)
		for {
			if _, err := io.ReadFull(r, raw); err != nil {
				break
			}
			msg, err := decodeIntakeMessage(raw)
			if err != nil {
				d.errs <- err
				continue
			}
			d.Messages <- msg
		}
		f.Close()
	}
}

func decodeIntakeMessage(b []byte) (IntakeMessage, error) {
	if len(b) != intakeMessageSize {
		return IntakeMessage{}, fmt.Errorf("intake: short message record (%d bytes)", len(b))
	}
	r := bytes.NewReader(b)
	var m IntakeMessage
	for _, field := range []interface{}{
		&m.CreationTime, &m.JobID, &m.SplitCounter, &m.FilesToSend,
		&m.FileSizeToSend, &m.DirNumber, &m.UniqueNumber,
	} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return IntakeMessage{}, fmt.Errorf("intake: decode message: %w", err)
		}
	}
	prioAndOriginator := make([]byte, 2)
	if _, err := io.ReadFull(r, prioAndOriginator); err != nil {
		return IntakeMessage{}, fmt.Errorf("intake: decode message tail: %w", err)
	}
	m.Priority = prioAndOriginator[0]
	m.Originator = prioAndOriginator[1]
	return m, nil
}

func (d *Demux) readFins(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open fin fifo: %w", err)
			return
		}
		r := bufio.NewReader(f)
		raw := make([]byte, 4)
		for {
			if _, err := io.ReadFull(r, raw); err != nil {
				break
			}
			pid := int32(binary.LittleEndian.Uint32(raw))
			d.Fins <- FinSignal{PID: pid}
		}
		f.Close()
	}
}

func (d *Demux) readWakeUps(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open wake-up fifo: %w", err)
			return
		}
		buf := make([]byte, 1)
		r := bufio.NewReader(f)
		for {
			if _, err := io.ReadFull(r, buf); err != nil {
				break
			}
			select {
			case d.WakeUps <- struct{}{}:
			default:
			}
		}
		f.Close()
	}
}

func (d *Demux) readRetries(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open retry fifo: %w", err)
			return
		}
		r := bufio.NewReader(f)
		raw := make([]byte, 4)
		for {
			if _, err := io.ReadFull(r, raw); err != nil {
				break
			}
			d.Retries <- int32(binary.LittleEndian.Uint32(raw))
		}
		f.Close()
	}
}

func (d *Demux) readDeletes(path string) {
	if path == "" {
		return
	}
	for {
		f, err := openFIFOReader(path)
		if err != nil {
			d.errs <- fmt.Errorf("intake: open delete fifo: %w", err)
			return
		}
		r := bufio.NewReader(f)
		record, err := r.ReadBytes(0)
		for err == nil {
			if names := splitNUL(record); len(names) > 0 {
				d.Deletes <- names
			}
			record, err = r.ReadBytes(0)
		}
		f.Close()
	}
}

func splitNUL(b []byte) []string {
	var out []string
	for _, part := range bytes.Split(b, []byte{0}) {
		if len(part) == 0 {
			continue
		}
		out = append(out, string(part))
	}
	return out
}
