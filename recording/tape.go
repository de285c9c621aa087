// Package recording records frames to tapes or a sqlite store and plays them back.
package recording

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/pam-robotics/vicontransformer/frameformat"
	"github.com/pam-robotics/vicontransformer/vicon"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// InProgressTapeExt is the extension of tapes which are still being written to.
	InProgressTapeExt = ".prog"
	// TapeExt is the extension of completed tapes.
	TapeExt = ".tape"
	// Non-exhaustive list of characters to strip from file names, since not allowed
	// on certain file systems.
	filePathReservedChars = ":"
)

// TapeMetadata is the first line of every tape.
type TapeMetadata struct {
	ID            string    `json:"id"`
	Created       time.Time `json:"created"`
	FormatVersion int       `json:"format_version"`
	Source        string    `json:"source,omitempty"`
	Note          string    `json:"note,omitempty"`
}

// NewTapeMetadata returns metadata with a fresh id for a tape recorded now.
func NewTapeMetadata(source, note string) TapeMetadata {
	return TapeMetadata{
		ID:            uuid.NewString(),
		Created:       time.Now().UTC(),
		FormatVersion: frameformat.CurrentVersion,
		Source:        source,
		Note:          note,
	}
}

// Sink receives recorded frames.
type Sink interface {
	Write(ctx context.Context, frame vicon.Frame) error
	Close() error
}

// TapeWriter writes frames to a tape. The tape carries the in-progress extension until
// it is closed.
type TapeWriter struct {
	Metadata TapeMetadata

	mu        sync.Mutex
	file      *os.File
	w         *bufio.Writer
	finalPath string
	count     int
	closed    bool
}

// NewTapeWriter creates a new tape in dir, named after its creation time.
func NewTapeWriter(dir string, md TapeMetadata) (*TapeWriter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	name := FilePathWithReplacedReservedChars(md.Created.Format(time.RFC3339Nano))
	return CreateTape(filepath.Join(dir, name+TapeExt), md)
}

// CreateTape creates a new tape which is moved to path once closed.
func CreateTape(path string, md TapeMetadata) (*TapeWriter, error) {
	if filepath.Ext(path) != TapeExt {
		return nil, errors.Errorf("%s does not have the tape extension %s", path, TapeExt)
	}
	if md.ID == "" {
		md.ID = uuid.NewString()
	}
	if md.FormatVersion == 0 {
		md.FormatVersion = frameformat.CurrentVersion
	}

	progPath := strings.TrimSuffix(path, TapeExt) + InProgressTapeExt
	//nolint:gosec
	f, err := os.OpenFile(progPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	tw := &TapeWriter{Metadata: md, file: f, w: bufio.NewWriter(f), finalPath: path}
	if err := tw.writeLine(md); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot write tape metadata"), f.Close())
	}
	return tw, nil
}

func (tw *TapeWriter) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := tw.w.Write(data); err != nil {
		return err
	}
	return tw.w.WriteByte('\n')
}

// Write appends a frame to the tape.
func (tw *TapeWriter) Write(ctx context.Context, frame vicon.Frame) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return errors.New("tape already closed")
	}
	if err := tw.writeLine(frameformat.FromFrame(frame)); err != nil {
		return errors.Wrapf(err, "cannot write frame %d", frame.FrameNumber)
	}
	tw.count++
	return nil
}

// Count returns the number of frames written so far.
func (tw *TapeWriter) Count() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.count
}

// Path returns the path of the completed tape.
func (tw *TapeWriter) Path() string {
	return tw.finalPath
}

// Close flushes the tape and gives it the completed extension.
func (tw *TapeWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	if err := tw.w.Flush(); err != nil {
		return multierr.Combine(err, tw.file.Close())
	}
	if err := tw.file.Close(); err != nil {
		return err
	}
	return os.Rename(tw.file.Name(), tw.finalPath)
}

// TapeReader reads frames from a completed tape.
type TapeReader struct {
	Metadata TapeMetadata
	path     string
	size     int64

	mu         sync.Mutex
	file       *os.File
	reader     *bufio.Reader
	dataOffset int64
}

// OpenTape opens the tape at path.
func OpenTape(path string) (*TapeReader, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	tr, err := NewTapeReader(f)
	if err != nil {
		return nil, multierr.Combine(err, f.Close())
	}
	return tr, nil
}

// NewTapeReader creates a reader from a file previously written by a TapeWriter.
func NewTapeReader(f *os.File) (*TapeReader, error) {
	if !IsTape(f) {
		return nil, errors.Errorf("%s is not a tape", f.Name())
	}
	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(f)
	line, err := reader.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	var md TapeMetadata
	if err := json.Unmarshal(line, &md); err != nil {
		return nil, errors.Wrapf(err, "failed to read tape metadata from %s", f.Name())
	}
	if md.ID == "" {
		return nil, errors.Errorf("tape %s has no id", f.Name())
	}

	return &TapeReader{
		Metadata:   md,
		path:       f.Name(),
		size:       finfo.Size(),
		file:       f,
		reader:     reader,
		dataOffset: int64(len(line)),
	}, nil
}

// ReadNext returns the next frame. io.EOF is returned after the last one.
func (tr *TapeReader) ReadNext() (vicon.Frame, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for {
		line, err := tr.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return vicon.Frame{}, err
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return vicon.Frame{}, err
		}
		return frameformat.UnmarshalFrame(line)
	}
}

// Reset moves the read position back to the first frame.
func (tr *TapeReader) Reset() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, err := tr.file.Seek(tr.dataOffset, io.SeekStart); err != nil {
		return err
	}
	tr.reader.Reset(tr.file)
	return nil
}

// ReadAll returns all frames of the tape.
func (tr *TapeReader) ReadAll() ([]vicon.Frame, error) {
	if err := tr.Reset(); err != nil {
		return nil, err
	}
	var frames []vicon.Frame
	for {
		frame, err := tr.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, errors.Wrapf(err, "frame %d of %s", len(frames), tr.path)
		}
		frames = append(frames, frame)
	}
}

// Size returns the size of the tape file.
func (tr *TapeReader) Size() int64 {
	return tr.size
}

// Path returns the path of the tape file.
func (tr *TapeReader) Path() string {
	return tr.path
}

// Close closes the file.
func (tr *TapeReader) Close() error {
	return tr.file.Close()
}

// IsTape returns whether or not f is a completed tape.
func IsTape(f *os.File) bool {
	return filepath.Ext(f.Name()) == TapeExt
}

// FilePathWithReplacedReservedChars returns the filepath with substitutions
// for reserved characters.
func FilePathWithReplacedReservedChars(filepath string) string {
	return strings.ReplaceAll(filepath, filePathReservedChars, "_")
}

// ReadTape returns the metadata and all frames of the tape at path.
func ReadTape(path string) (md TapeMetadata, frames []vicon.Frame, err error) {
	tr, err := OpenTape(path)
	if err != nil {
		return TapeMetadata{}, nil, err
	}
	defer func() {
		err = multierr.Combine(err, tr.Close())
	}()
	frames, err = tr.ReadAll()
	return tr.Metadata, frames, err
}
