package ystore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/collabdocs/yroomd/internal/logger"
	"github.com/collabdocs/yroomd/internal/wire"
)

const versionHeaderPrefix = "VERSION:"

// FileStore persists one file per document under BaseDir, named by the
// document's path. Every write appends a (update, metadata, timestamp)
// triple, each length-prefixed the same way wire frames are, after an
// 8-byte "VERSION:" header followed by a decimal version line.
type FileStore struct {
	BaseDir string
	Log     *logger.Logger
	Meta    MetadataFunc

	mu sync.Mutex // serializes every file op across every path, mirroring the Python store's single anyio.Lock
}

// NewFileStore returns a store rooted at baseDir. baseDir is created lazily
// on first write.
func NewFileStore(baseDir string, meta MetadataFunc, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Default()
	}
	return &FileStore{BaseDir: baseDir, Log: log, Meta: meta}
}

func (s *FileStore) filePath(path string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(path))
}

// checkVersion ensures the file at full has a valid version header,
// migrating it aside and recreating it if the header is missing, malformed,
// or stale. It returns the byte offset where update data begins. Caller
// must hold s.mu.
func (s *FileStore) checkVersion(full string) (int64, error) {
	mismatch := false

	f, err := os.Open(full)
	switch {
	case err == nil:
		defer f.Close()
		header := make([]byte, 8)
		n, _ := io.ReadFull(f, header)
		if n != 8 || string(header) != versionHeaderPrefix {
			mismatch = true
		} else {
			var version int
			if _, scanErr := fmt.Fscanf(f, "%d\n", &version); scanErr != nil || version != SchemaVersion {
				mismatch = true
			}
		}
	case os.IsNotExist(err):
		mismatch = true
	default:
		return 0, err
	}

	if !mismatch {
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		return offset, nil
	}

	if f != nil {
		f.Close()
	}
	if _, err := os.Stat(full); err == nil {
		newPath, err := nextAvailablePath(full)
		if err != nil {
			return 0, err
		}
		s.Log.Warnf("ystore: version mismatch, moving %s to %s", full, newPath)
		if err := os.Rename(full, newPath); err != nil {
			return 0, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, err
	}
	header := []byte(fmt.Sprintf("%s%d\n", versionHeaderPrefix, SchemaVersion))
	if err := os.WriteFile(full, header, 0o644); err != nil {
		return 0, err
	}
	return int64(len(header)), nil
}

// nextAvailablePath returns "name(1).ext", "name(2).ext", ... for the first
// name under which no file currently exists.
func nextAvailablePath(full string) (string, error) {
	ext := filepath.Ext(full)
	base := full[:len(full)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.filePath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		err := filepath.Walk(s.BaseDir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) && p == s.BaseDir {
					return nil
				}
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(s.BaseDir, p)
			if relErr != nil {
				return relErr
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return io.EOF
			}
			return nil
		})
		if err != nil && err != io.EOF {
			yield("", err)
		}
	}
}

func (s *FileStore) Read(ctx context.Context, path string) iter.Seq2[StoredUpdate, error] {
	return func(yield func(StoredUpdate, error) bool) {
		s.mu.Lock()
		full := s.filePath(path)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			s.mu.Unlock()
			yield(StoredUpdate{}, ErrDocNotFound)
			return
		}
		offset, err := s.checkVersion(full)
		if err != nil {
			s.mu.Unlock()
			yield(StoredUpdate{}, err)
			return
		}
		f, err := os.Open(full)
		if err != nil {
			s.mu.Unlock()
			yield(StoredUpdate{}, err)
			return
		}
		data, err := func() ([]byte, error) {
			defer f.Close()
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return nil, err
			}
			return io.ReadAll(f)
		}()
		s.mu.Unlock()
		if err != nil {
			yield(StoredUpdate{}, err)
			return
		}
		if len(data) == 0 {
			yield(StoredUpdate{}, ErrDocNotFound)
			return
		}

		r := wire.NewReader(data)
		var cur StoredUpdate
		i := 0
		found := false
		for frame, err := range r.ReadMessages() {
			if err != nil {
				yield(StoredUpdate{}, err)
				return
			}
			switch i % 3 {
			case 0:
				cur = StoredUpdate{Update: frame}
			case 1:
				cur.Metadata = frame
			case 2:
				if len(frame) == 8 {
					bits := binary.LittleEndian.Uint64(frame)
					cur.Timestamp = math.Float64frombits(bits)
				}
				found = true
				if !yield(cur, nil) {
					return
				}
			}
			i++
		}
		if !found {
			yield(StoredUpdate{}, ErrDocNotFound)
		}
	}
}

func (s *FileStore) Write(ctx context.Context, path string, data []byte) error {
	full := s.filePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if _, err := s.checkVersion(full); err != nil {
		return err
	}

	meta, err := metadataOrEmpty(ctx, s.Meta)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	wire.WriteFrame(&buf, data)
	wire.WriteFrame(&buf, meta)
	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, math.Float64bits(float64(time.Now().UnixNano())/1e9))
	wire.WriteFrame(&buf, ts)

	f, err := os.OpenFile(full, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buf.Bytes())
	return err
}

func (s *FileStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.filePath(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStore) Close() error { return nil }

func metadataOrEmpty(ctx context.Context, fn MetadataFunc) ([]byte, error) {
	if fn == nil {
		return []byte{}, nil
	}
	return fn(ctx)
}
