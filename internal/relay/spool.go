package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

const spoolSuffix = ".json"

// spoolMessage is the on-disk form of one relay message.
type spoolMessage struct {
	Action  string         `json:"action"`
	Package string         `json:"package"`
	Extras  map[string]any `json:"extras"`
}

// SpoolChannel relays through a shared directory: one file per message,
// written to a hidden temp name and renamed into place.
type SpoolChannel struct {
	dir string
}

// NewSpoolChannel creates dir if needed.
func NewSpoolChannel(dir string) (*SpoolChannel, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &SpoolChannel{dir: dir}, nil
}

// Broadcast implements Channel.
func (c *SpoolChannel) Broadcast(ctx context.Context, msg *intent.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	extras, err := wireExtras(msg.Extras)
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	data, err := json.Marshal(spoolMessage{Action: msg.Action, Package: msg.Package, Extras: extras})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}

	name := uuid.NewString() + spoolSuffix
	tmp := filepath.Join(c.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish spool file: %w", err)
	}
	return nil
}

// SpoolListener watches a spool directory and consumes message files.
type SpoolListener struct {
	dir    string
	pkg    string
	logger *slog.Logger
}

// NewSpoolListener returns a listener for messages addressed to pkg.
func NewSpoolListener(dir, pkg string, logger *slog.Logger) (*SpoolListener, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &SpoolListener{dir: dir, pkg: pkg, logger: logger}, nil
}

// Listen consumes files already in the directory, then new ones as they
// appear, until ctx is cancelled.
func (l *SpoolListener) Listen(ctx context.Context, h Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	// Files written before the watch was added produce no event.
	l.drain(h)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !isSpoolFile(event.Name) {
				continue
			}
			l.consume(event.Name, h)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("spool watcher error", "error", err)
		}
	}
}

func (l *SpoolListener) drain(h Handler) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.logger.Warn("read spool directory", "error", err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSpoolFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		l.consume(filepath.Join(l.dir, name), h)
	}
}

// consume reads and removes one file. Each file is handed on at most once:
// it is removed before the handler runs.
func (l *SpoolListener) consume(path string, h Handler) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("read spool file", "path", path, "error", err)
		}
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("remove spool file", "path", path, "error", err)
	}

	msg, err := decodeSpool(data)
	if err != nil {
		l.logger.Warn("decode spool file", "path", path, "error", err)
		return
	}
	if msg.Package != l.pkg {
		l.logger.Warn("ignoring spool message for another package", "package", msg.Package)
		return
	}
	h(msg)
}

func decodeSpool(data []byte) (*intent.Intent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var sm spoolMessage
	if err := dec.Decode(&sm); err != nil {
		return nil, err
	}

	msg := intent.New(sm.Action)
	msg.Package = sm.Package
	keys := make([]string, 0, len(sm.Extras))
	for k := range sm.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := sm.Extras[k]
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = int(i)
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		msg.Extras.Put(k, v)
	}
	return msg, nil
}

func isSpoolFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, spoolSuffix) && !strings.HasPrefix(name, ".")
}
