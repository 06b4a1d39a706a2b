package importer

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	seekerr "github.com/logseek/logseek/internal/errors"
)

// LineSource yields record content one line at a time. Sources are
// lazy: nothing is read until Next is called, so arbitrarily large
// inputs never need to fit in memory.
type LineSource interface {
	// Next returns the next line without its terminator. It returns
	// io.EOF when the source is exhausted.
	Next() (string, error)

	// SizeHint returns the total input size in bytes, or 0 when
	// unknown (compressed or streaming input).
	SizeHint() int64

	io.Closer
}

// readBufferSize is the reader's initial buffer. Lines longer than it
// are still returned whole; record content is unbounded here, and any
// size ceiling is the importer's to enforce per record.
const readBufferSize = 64 * 1024

type readerSource struct {
	reader *bufio.Reader
	closer io.Closer
	size   int64
	done   bool
}

// NewReaderSource wraps an arbitrary reader as a line source. The
// size hint is 0 unless the caller knows better.
func NewReaderSource(r io.Reader) LineSource {
	return newReaderSource(r, nil, 0)
}

func newReaderSource(r io.Reader, closer io.Closer, size int64) *readerSource {
	return &readerSource{
		reader: bufio.NewReaderSize(r, readBufferSize),
		closer: closer,
		size:   size,
	}
}

func (s *readerSource) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	line, err := s.reader.ReadString('\n')
	if err == io.EOF {
		s.done = true
		if line == "" {
			return "", io.EOF
		}
	} else if err != nil {
		return "", err
	}

	// Tolerate CRLF input.
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (s *readerSource) SizeHint() int64 { return s.size }

func (s *readerSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type fileSource struct {
	*readerSource
	file *os.File
	gz   *gzip.Reader
}

// NewFileSource opens path as a line source. Files with a .gz
// extension are transparently decompressed; their size hint is 0
// because the uncompressed length is unknown up front.
func NewFileSource(path string) (LineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, seekerr.New(seekerr.ErrCodeFileNotFound,
				"file not found: "+path, err)
		}
		if os.IsPermission(err) {
			return nil, seekerr.New(seekerr.ErrCodeFilePermission,
				"permission denied: "+path, err)
		}
		return nil, seekerr.New(seekerr.ErrCodeStorageFailure,
			"failed to open "+path, err)
	}

	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, seekerr.New(seekerr.ErrCodeInvalidInput,
				"not a valid gzip file: "+path, err)
		}
		return &fileSource{
			readerSource: newReaderSource(gz, nil, 0),
			file:         f,
			gz:           gz,
		}, nil
	}

	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return &fileSource{
		readerSource: newReaderSource(f, nil, size),
		file:         f,
	}, nil
}

func (s *fileSource) Close() error {
	if s.gz != nil {
		_ = s.gz.Close()
	}
	return s.file.Close()
}

type sliceSource struct {
	lines []string
	pos   int
}

// NewSliceSource yields lines from memory, mainly for tests and
// programmatic import.
func NewSliceSource(lines []string) LineSource {
	return &sliceSource{lines: lines}
}

func (s *sliceSource) Next() (string, error) {
	if s.pos >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

func (s *sliceSource) SizeHint() int64 { return 0 }
func (s *sliceSource) Close() error    { return nil }
