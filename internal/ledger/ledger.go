// Package ledger tracks ingestion progress through trip files so an
// interrupted run can resume where it stopped.
//
// The ledger is an append-only file of JSON lines. Every checkpoint
// appends one entry; the current state is rebuilt on open by replaying
// the file, with the last entry for a (city, file) pair winning. A crash
// mid-write can at worst lose the final line, never earlier history.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
)

// ErrCorrupt reports a ledger line that is not valid JSON or carries an
// unparseable status.
var ErrCorrupt = errors.New("corrupt ledger entry")

const doneStatus = "done"

// Status records how far ingestion got through one trip file.
type Status struct {
	// Done marks the file as fully ingested.
	Done bool
	// Offset is the index of the first row not yet processed. The zero
	// value means the file was never started.
	Offset int
}

// Done is the status of a fully ingested file.
func Done() Status { return Status{Done: true} }

// ResumeAt is the status of a file whose next unprocessed row is offset.
func ResumeAt(offset int) Status { return Status{Offset: offset} }

// Position is one (city, file) pair with its current status.
type Position struct {
	City   string
	File   string
	Status Status
}

type key struct {
	city string
	file string
}

type entry struct {
	City   string `json:"city"`
	File   string `json:"file"`
	Status string `json:"status"`
}

// Ledger is a durable checkpoint log. Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	f     *os.File
	state map[key]Status
	path  string
}

// Open loads the ledger at path, replaying any existing entries. A
// missing file yields an empty ledger.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	led := &Ledger{path: path, state: make(map[key]Status)}
	if err := led.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	led.f = f

	logger.Info("checkpoint ledger loaded", "path", path, "positions", len(led.state))
	return led, nil
}

func (l *Ledger) replay() error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("%s line %d: %w", l.path, line, ErrCorrupt)
		}
		st, err := parseStatus(e.Status)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", l.path, line, ErrCorrupt)
		}
		l.state[key{e.City, e.File}] = st
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return nil
}

// Save appends a checkpoint and syncs it to disk before returning, so a
// crash after Save never loses the entry.
func (l *Ledger) Save(city, file string, st Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(entry{City: city, File: file, Status: encodeStatus(st)})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	b = append(b, '\n')
	if _, err := l.f.Write(b); err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.state[key{city, file}] = st
	return nil
}

// Status returns the recorded position for a (city, file) pair. Files
// never checkpointed report the zero Status.
func (l *Ledger) Status(city, file string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[key{city, file}]
}

// Snapshot returns every recorded position, sorted by city then file.
func (l *Ledger) Snapshot() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.state))
	for k, st := range l.state {
		out = append(out, Position{City: k.city, File: k.file, Status: st})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].File < out[j].File
	})
	return out
}

// Close releases the append handle. Saved entries are already on disk.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func encodeStatus(st Status) string {
	if st.Done {
		return doneStatus
	}
	return strconv.Itoa(st.Offset)
}

func parseStatus(s string) (Status, error) {
	if s == doneStatus {
		return Status{Done: true}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Status{}, fmt.Errorf("bad status %q", s)
	}
	return Status{Offset: n}, nil
}
