package recording

import (
	"context"
	"database/sql"
	// embeds the store schema.
	_ "embed"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/vicon"
)

//go:embed schema.sql
var schemaSQL string

// Recording describes one recording kept in a Store.
type Recording struct {
	ID        string
	Created   time.Time
	Source    string
	Note      string
	NumFrames int
}

// Store keeps recordings in a sqlite database. Frames are stored as format 3 records.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps writes serialized
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot initialize recording store %q", path), db.Close())
	}
	return &Store{db: db}, nil
}

// CreateRecording adds a recording and returns its id. An id is generated if md has none.
func (s *Store) CreateRecording(ctx context.Context, md TapeMetadata) (string, error) {
	if md.ID == "" {
		md.ID = uuid.NewString()
	}
	if md.Created.IsZero() {
		md.Created = time.Now().UTC()
	}
	if md.FormatVersion == 0 {
		md.FormatVersion = frameformat.CurrentVersion
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (id, created_ns, format_version, source, note) VALUES (?, ?, ?, ?, ?)`,
		md.ID, md.Created.UnixNano(), md.FormatVersion, md.Source, md.Note)
	if err != nil {
		return "", errors.Wrap(err, "failed to create recording")
	}
	return md.ID, nil
}

// AppendFrame stores frame as the next frame of a recording.
func (s *Store) AppendFrame(ctx context.Context, recordingID string, frame vicon.Frame) error {
	data, err := frameformat.MarshalFrame(frame)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frames (recording_id, seq, frame_number, time_stamp, record)
		SELECT ?, COALESCE(MAX(seq) + 1, 0), ?, ?, ? FROM frames WHERE recording_id = ?`,
		recordingID, frame.FrameNumber, frame.TimestampNs, string(data), recordingID)
	if err != nil {
		return errors.Wrapf(err, "failed to append frame %d to recording %s", frame.FrameNumber, recordingID)
	}
	return nil
}

// Frames returns all frames of a recording in the order they were appended.
func (s *Store) Frames(ctx context.Context, recordingID string) ([]vicon.Frame, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings WHERE id = ?`, recordingID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, errors.Errorf("no recording with id %q", recordingID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM frames WHERE recording_id = ? ORDER BY seq`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var frames []vicon.Frame
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		frame, err := frameformat.UnmarshalFrame([]byte(record))
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d of recording %s", len(frames), recordingID)
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// Recordings lists all recordings, oldest first.
func (s *Store) Recordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_ns, r.source, r.note, COUNT(f.seq)
		FROM recordings r LEFT JOIN frames f ON f.recording_id = r.id
		GROUP BY r.id
		ORDER BY r.created_ns, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var recordings []Recording
	for rows.Next() {
		var (
			r         Recording
			createdNs int64
		)
		if err := rows.Scan(&r.ID, &createdNs, &r.Source, &r.Note, &r.NumFrames); err != nil {
			return nil, err
		}
		r.Created = time.Unix(0, createdNs).UTC()
		recordings = append(recordings, r)
	}
	return recordings, rows.Err()
}

// DeleteRecording removes a recording and its frames.
func (s *Store) DeleteRecording(ctx context.Context, recordingID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE recording_id = ?`, recordingID); err != nil {
		return multierr.Combine(err, tx.Rollback())
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, recordingID); err != nil {
		return multierr.Combine(err, tx.Rollback())
	}
	return tx.Commit()
}

// Sink returns a Sink appending frames to a recording.
func (s *Store) Sink(recordingID string) Sink {
	return &storeSink{store: s, recordingID: recordingID}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type storeSink struct {
	mu          sync.Mutex
	store       *Store
	recordingID string
}

func (ss *storeSink) Write(ctx context.Context, frame vicon.Frame) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.store.AppendFrame(ctx, ss.recordingID, frame)
}

// Close leaves the store open; it is owned by the caller of Sink.
func (ss *storeSink) Close() error {
	return nil
}
