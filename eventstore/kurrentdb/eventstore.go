package kurrentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var _ cqrs.EventStore = (*EventStore)(nil)

// EventStore stores streams in KurrentDB. KurrentDB revisions are 0-based,
// envelope versions are 1-based: Version = EventNumber + 1.
type EventStore struct {
	client *kurrentdb.Client
}

func NewEventStore(db *kurrentdb.Client) *EventStore {
	return &EventStore{
		client: db,
	}
}

// Dial parses a kurrentdb:// connection string and connects.
func Dial(connection string) (*kurrentdb.Client, error) {
	settings, err := kurrentdb.ParseConnectionString(connection)
	if err != nil {
		return nil, fmt.Errorf("parse kurrentdb connection string: %w", err)
	}
	client, err := kurrentdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("connect kurrentdb: %w", err)
	}
	return client, nil
}

func expectedState(stream string, revision cqrs.StreamState) (kurrentdb.StreamState, error) {
	switch rev := revision.(type) {
	case cqrs.Any:
		return kurrentdb.Any{}, nil
	case cqrs.NoStream:
		return kurrentdb.NoStream{}, nil
	case cqrs.StreamExists:
		return kurrentdb.StreamExists{}, nil
	case cqrs.Revision:
		if rev == 0 {
			return kurrentdb.NoStream{}, nil
		}
		return kurrentdb.StreamRevision{Value: uint64(rev) - 1}, nil
	default:
		return nil, fmt.Errorf("stream %q: unsupported revision %T: %w", stream, revision, cqrs.ErrInvalidRevision)
	}
}

func (e *EventStore) Save(ctx context.Context, events []cqrs.Envelope, revision cqrs.StreamState) (cqrs.AppendResult, error) {
	if len(events) == 0 {
		return cqrs.AppendResult{Successful: true}, nil
	}

	stream := events[0].StreamID
	state, err := expectedState(stream, revision)
	if err != nil {
		return cqrs.AppendResult{}, err
	}

	kevents := make([]kurrentdb.EventData, len(events))
	for i, ev := range events {
		if ev.StreamID != stream || ev.Event == nil {
			return cqrs.AppendResult{}, fmt.Errorf("save to stream %q: %w: event %d", stream, cqrs.ErrInvalidEventBatch, i)
		}

		eventData, err := json.Marshal(ev.Event)
		if err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", stream, err)
		}

		metaData, err := json.Marshal(ev.Metadata)
		if err != nil {
			return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", stream, err)
		}

		kevents[i] = kurrentdb.EventData{
			EventID:     ev.EventID,
			EventType:   ev.Event.EventType(),
			ContentType: kurrentdb.ContentTypeJson,
			Data:        eventData,
			Metadata:    metaData,
		}
	}

	result, err := e.client.AppendToStream(ctx, stream, kurrentdb.AppendToStreamOptions{
		StreamState: state,
	}, kevents...)
	if err != nil {
		var kerr *kurrentdb.Error
		if errors.As(err, &kerr) && kerr.Code() == kurrentdb.ErrorCodeWrongExpectedVersion {
			return cqrs.AppendResult{}, cqrs.StreamRevisionConflictError{
				Stream:           stream,
				ExpectedRevision: revision,
				ActualRevision:   cqrs.Any{},
			}
		}
		return cqrs.AppendResult{}, cqrs.WrapEventStoreError("save", stream, err)
	}

	return cqrs.AppendResult{
		Successful:          true,
		StreamID:            stream,
		NextExpectedVersion: result.NextExpectedVersion + 1,
	}, nil
}

func (e *EventStore) LoadStream(ctx context.Context, id string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return e.LoadStreamFrom(ctx, id, 0)
}

func (e *EventStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	streamer, err := e.client.ReadStream(ctx, id, kurrentdb.ReadStreamOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.StreamRevision{Value: version},
		ResolveLinkTos: true,
	}, ^uint64(0))
	if err != nil {
		return nil, cqrs.WrapEventStoreError("load", id, err)
	}

	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		if err := ctx.Err(); err != nil {
			streamer.Close()
			return nil, err
		}

		resolved, err := streamer.Recv()
		if err != nil {
			streamer.Close()
			var kerr *kurrentdb.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &kerr) && kerr.Code() == kurrentdb.ErrorCodeResourceNotFound) {
				return nil, io.EOF
			}
			return nil, cqrs.WrapEventStoreError("load", id, err)
		}

		return Decode(resolved.OriginalEvent())
	}), nil
}

// LoadFromAll reads the $all log after the given commit position. System
// events are skipped.
func (e *EventStore) LoadFromAll(ctx context.Context, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	var from kurrentdb.AllPosition = kurrentdb.Start{}
	if version > 0 {
		from = kurrentdb.Position{Commit: version, Prepare: version}
	}

	streamer, err := e.client.ReadAll(ctx, kurrentdb.ReadAllOptions{
		Direction:      kurrentdb.Forwards,
		From:           from,
		ResolveLinkTos: true,
	}, ^uint64(0))
	if err != nil {
		return nil, cqrs.WrapEventStoreError("load", "$all", err)
	}

	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		for {
			if err := ctx.Err(); err != nil {
				streamer.Close()
				return nil, err
			}

			resolved, err := streamer.Recv()
			if errors.Is(err, io.EOF) {
				streamer.Close()
				return nil, io.EOF
			}
			if err != nil {
				streamer.Close()
				return nil, cqrs.WrapEventStoreError("load", "$all", err)
			}

			recorded := resolved.OriginalEvent()
			if strings.HasPrefix(recorded.EventType, "$") || recorded.Position.Commit <= version {
				continue
			}
			return Decode(recorded)
		}
	}), nil
}

// Decode turns a recorded KurrentDB event into an envelope using the event
// registry.
func Decode(recorded *kurrentdb.RecordedEvent) (*cqrs.Envelope, error) {
	ev, err := cqrs.UnmarshalEvent(recorded.EventType, recorded.Data)
	if err != nil {
		return nil, cqrs.WrapEventStoreError("decode", recorded.StreamID, err)
	}

	metadata := make(map[string]any)
	if len(recorded.UserMetadata) > 0 {
		// unreadable metadata does not make the event unreadable
		_ = json.Unmarshal(recorded.UserMetadata, &metadata)
	}

	return &cqrs.Envelope{
		EventID:       recorded.EventID,
		StreamID:      recorded.StreamID,
		Event:         ev,
		Metadata:      metadata,
		Version:       recorded.EventNumber + 1,
		GlobalVersion: recorded.Position.Commit,
		OccurredAt:    recorded.CreatedDate,
	}, nil
}

func (e *EventStore) Close() error {
	return e.client.Close()
}
