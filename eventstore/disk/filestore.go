package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var _ cqrs.EventStore = (*FileStore)(nil)

const allDir = "$all"

// FileStore keeps one JSON file per event below dir/<stream>/ and links
// every event into dir/$all/ in commit order. Event payloads are decoded
// through the event registry, so every persisted event type must be
// registered before loading.
type FileStore struct {
	baseDir   string
	mu        sync.Mutex
	bus       chan *cqrs.Envelope
	globalSeq uint64
	closed    bool
}

func NewFileStore(dir string, buffer int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, allDir), 0o755); err != nil {
		return nil, fmt.Errorf("create event store dir: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, allDir))
	if err != nil {
		return nil, fmt.Errorf("read $all: %w", err)
	}

	return &FileStore{
		baseDir:   dir,
		bus:       make(chan *cqrs.Envelope, buffer),
		globalSeq: uint64(len(entries)),
	}, nil
}

func (f *FileStore) streamDir(id string) string {
	return filepath.Join(f.baseDir, url.PathEscape(id))
}

func (f *FileStore) Save(ctx context.Context, events []cqrs.Envelope, revision cqrs.StreamState) (cqrs.AppendResult, error) {
	if len(events) == 0 {
		return cqrs.AppendResult{Successful: true}, nil
	}

	id := events[0].StreamID
	for i, env := range events {
		if env.StreamID != id || env.Event == nil {
			return cqrs.AppendResult{}, fmt.Errorf("save to stream %q: %w: event %d", id, cqrs.ErrInvalidEventBatch, i)
		}
	}
	if id == allDir {
		return cqrs.AppendResult{}, fmt.Errorf("save to stream %q: reserved name: %w", id, cqrs.ErrInvalidEventBatch)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return cqrs.AppendResult{}, cqrs.ErrStoreClosed
	}

	sdir := f.streamDir(id)
	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
	}

	files, err := eventFiles(sdir)
	if err != nil {
		return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
	}
	currentVersion := uint64(len(files))

	switch rev := revision.(type) {
	case cqrs.Any:
	case cqrs.NoStream:
		if currentVersion != 0 {
			return cqrs.AppendResult{}, fmt.Errorf("stream %q: %w", id, cqrs.ErrStreamExists)
		}
	case cqrs.StreamExists:
		if currentVersion == 0 {
			return cqrs.AppendResult{}, fmt.Errorf("stream %q: %w", id, cqrs.ErrStreamNotFound)
		}
	case cqrs.Revision:
		if currentVersion != uint64(rev) {
			return cqrs.AppendResult{}, cqrs.StreamRevisionConflictError{
				Stream:           id,
				ExpectedRevision: rev,
				ActualRevision:   cqrs.Revision(currentVersion),
			}
		}
	default:
		return cqrs.AppendResult{}, fmt.Errorf("stream %q: unsupported revision %T: %w", id, revision, cqrs.ErrInvalidRevision)
	}

	for i := range events {
		if err := ctx.Err(); err != nil {
			return cqrs.AppendResult{}, err
		}

		env := events[i]
		currentVersion++
		f.globalSeq++
		env.Version = currentVersion
		env.GlobalVersion = f.globalSeq

		data, err := json.Marshal(env.Event)
		if err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, fmt.Errorf("marshal %s: %w", env.Event.EventType(), err))
		}

		record, err := json.Marshal(storedEvent{
			EventID:       env.EventID,
			StreamID:      env.StreamID,
			Metadata:      env.Metadata,
			EventType:     env.Event.EventType(),
			Data:          data,
			Version:       env.Version,
			GlobalVersion: env.GlobalVersion,
			OccurredAt:    env.OccurredAt,
		})
		if err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
		}

		name := fmt.Sprintf("%020d-%s.json", env.Version, url.PathEscape(env.Event.EventType()))
		path := filepath.Join(sdir, name)
		if err := writeFile(path, record); err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
		}

		link := filepath.Join(f.baseDir, allDir, fmt.Sprintf("%020d-%s", env.GlobalVersion, name))
		rel, err := filepath.Rel(filepath.Join(f.baseDir, allDir), path)
		if err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
		}
		if err := os.Symlink(rel, link); err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", id, err)
		}

		select {
		case f.bus <- &env:
		default:
		}
	}

	return cqrs.AppendResult{
		Successful:          true,
		StreamID:            id,
		NextExpectedVersion: currentVersion,
	}, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileStore) LoadStream(ctx context.Context, id string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return f.LoadStreamFrom(ctx, id, 0)
}

func (f *FileStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	files, err := eventFiles(f.streamDir(id))
	if os.IsNotExist(err) || (err == nil && len(files) == 0) {
		return nil, fmt.Errorf("load stream %q: %w", id, cqrs.ErrStreamNotFound)
	}
	if err != nil {
		return nil, cqrs.WrapEventStoreError("load", id, err)
	}
	if version > uint64(len(files)) {
		return nil, fmt.Errorf("load stream %q: requested %d but stream has %d: %w", id, version, len(files), cqrs.ErrInvalidRevision)
	}
	return f.iterate(f.streamDir(id), files, version), nil
}

func (f *FileStore) LoadFromAll(ctx context.Context, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	dir := filepath.Join(f.baseDir, allDir)
	files, err := eventFiles(dir)
	if err != nil {
		return nil, cqrs.WrapEventStoreError("load", allDir, err)
	}
	if version > uint64(len(files)) {
		return nil, fmt.Errorf("load $all: requested %d but log has %d: %w", version, len(files), cqrs.ErrInvalidRevision)
	}
	return f.iterate(dir, files, version), nil
}

// eventFiles lists the event files of dir sorted by their sequence prefix.
func eventFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) iterate(dir string, files []string, from uint64) *cqrs.Iterator[*cqrs.Envelope] {
	idx := 0
	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		for idx < len(files) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			name := files[idx]
			idx++

			seq, err := strconv.ParseUint(strings.SplitN(name, "-", 2)[0], 10, 64)
			if err != nil || seq <= from {
				continue
			}

			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, cqrs.WrapEventStoreError("read", name, err)
			}

			var stored storedEvent
			if err := json.Unmarshal(data, &stored); err != nil {
				return nil, cqrs.WrapEventStoreError("decode", name, err)
			}

			ev, err := cqrs.UnmarshalEvent(stored.EventType, stored.Data)
			if err != nil {
				return nil, cqrs.WrapEventStoreError("decode", stored.StreamID, err)
			}

			return &cqrs.Envelope{
				EventID:       stored.EventID,
				StreamID:      stored.StreamID,
				Event:         ev,
				Metadata:      stored.Metadata,
				Version:       stored.Version,
				GlobalVersion: stored.GlobalVersion,
				OccurredAt:    stored.OccurredAt,
			}, nil
		}
		return nil, io.EOF
	})
}

// Events offers appended envelopes while the buffer has room; a full buffer
// drops the notification. The channel is closed by Close.
func (f *FileStore) Events() <-chan *cqrs.Envelope {
	return f.bus
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.bus)
	return nil
}

type storedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	StreamID      string          `json:"stream_id"`
	Metadata      map[string]any  `json:"metadata"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Version       uint64          `json:"version"`
	GlobalVersion uint64          `json:"global_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
