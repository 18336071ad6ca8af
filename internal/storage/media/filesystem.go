package media

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FilesystemStore keeps the media collection in a directory tree on local disk.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed and returns a store on it.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve media root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "create media root")
	}
	return &FilesystemStore{root: abs}, nil
}

func (s *FilesystemStore) Create(ctx context.Context, entry Entry) (EntryWriter, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, entry.Collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create collection %s", entry.Collection)
	}

	for n := 0; n < maxNameAttempts; n++ {
		name := candidateName(entry.DisplayName, n)
		p := filepath.Join(dir, name)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "create entry %s", name)
		}

		log.Ctx(ctx).Debug().Str("path", p).Msg("media entry created")
		return &fileEntryWriter{
			file: f,
			buf:  bufio.NewWriter(f),
			name: name,
			loc:  (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(),
		}, nil
	}

	return nil, errors.Wrap(ErrNameExhausted, entry.DisplayName)
}

func (s *FilesystemStore) Delete(ctx context.Context, locator string) error {
	p, err := s.pathFor(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrEntryNotFound
		}
		return errors.Wrap(err, "remove entry")
	}
	return nil
}

// pathFor maps a file:// locator back to a path, refusing anything outside root.
func (s *FilesystemStore) pathFor(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "file" {
		return "", errors.Wrapf(ErrEntryNotFound, "locator %q", locator)
	}
	p := filepath.FromSlash(u.Path)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrEntryNotFound, "locator %q", locator)
	}
	return p, nil
}

type fileEntryWriter struct {
	file *os.File
	buf  *bufio.Writer
	name string
	loc  string
	done bool
}

func (w *fileEntryWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *fileEntryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	flushErr := w.buf.Flush()
	var syncErr error
	if flushErr == nil {
		syncErr = w.file.Sync()
	}
	closeErr := w.file.Close()

	switch {
	case flushErr != nil:
		return errors.Wrap(flushErr, "flush entry")
	case syncErr != nil:
		return errors.Wrap(syncErr, "sync entry")
	case closeErr != nil:
		return errors.Wrap(closeErr, "close entry")
	}
	return nil
}

// Abort drops the buffered content and removes the partial file.
func (w *fileEntryWriter) Abort(error) error {
	if w.done {
		return nil
	}
	w.done = true

	w.file.Close()
	if err := os.Remove(w.file.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove aborted entry")
	}
	return nil
}

func (w *fileEntryWriter) Locator() string     { return w.loc }
func (w *fileEntryWriter) DisplayName() string { return w.name }
