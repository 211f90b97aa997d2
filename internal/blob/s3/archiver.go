package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

const archiveContentType = "application/zstd"

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 64 * 1024 * 1024

// EventArchiver implements domain.Archiver. It moves events older than the
// cutoff out of the event store into one zstd-compressed JSONL object and
// deletes them from the store only after the upload succeeded.
type EventArchiver struct {
	store  domain.EventStore
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
	logger *slog.Logger
}

func NewEventArchiver(store domain.EventStore, writer domain.BlobWriter, reader domain.BlobReader, prefix string, logger *slog.Logger) *EventArchiver {
	if prefix == "" {
		prefix = "archive/events"
	}
	return &EventArchiver{store: store, writer: writer, reader: reader, prefix: prefix, logger: logger}
}

func (a *EventArchiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	path := ArchivePath(a.prefix, before)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("s3blob: archive %s: %w", path, domain.ErrAlreadyExists)
	}

	buf, err := EncodeArchive(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive encode: %w", err)
	}
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), archiveContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prune: %w", err)
	}
	if deleted != int64(len(events)) {
		a.logger.WarnContext(ctx, "s3blob: archive pruned a different count than exported",
			slog.Int("exported", len(events)),
			slog.Int64("deleted", deleted),
		)
	}
	a.logger.InfoContext(ctx, "s3blob: events archived",
		slog.String("path", path),
		slog.Int("count", len(events)),
		slog.Int("bytes", len(buf)),
	)
	return int64(len(events)), nil
}

// ArchivePath names the object for a cutoff, e.g.
//
//	archive/events/20261017T000000Z.jsonl.zst
func ArchivePath(prefix string, before time.Time) string {
	return fmt.Sprintf("%s/%s.jsonl.zst", prefix, before.UTC().Format("20060102T150405Z"))
}

// EncodeArchive writes events as zstd-compressed JSON lines.
func EncodeArchive(events []domain.Event) ([]byte, error) {
	var out bytes.Buffer
	enc, err := zstd.NewWriter(&out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(w)
	je.SetEscapeHTML(false)
	for i, ev := range events {
		if err := je.Encode(ev); err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecodeArchive reads back an object written by EncodeArchive.
func DecodeArchive(r io.Reader) ([]domain.Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var events []domain.Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var ev domain.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	return events, sc.Err()
}

// LoadArchive fetches and decodes one archived object.
func LoadArchive(ctx context.Context, reader domain.BlobReader, path string) ([]domain.Event, error) {
	body, err := reader.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	events, err := DecodeArchive(body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: decode %s: %w", path, err)
	}
	return events, nil
}

var _ domain.Archiver = (*EventArchiver)(nil)
