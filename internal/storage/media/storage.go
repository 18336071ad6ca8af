package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// CollectionPictures is the shared pictures collection every saved image lands in.
const CollectionPictures = "Pictures"

var (
	ErrEntryNotFound  = errors.New("media entry not found")
	ErrInvalidEntry   = errors.New("invalid media entry")
	ErrNameExhausted  = errors.New("no free display name left for entry")
	ErrUnknownBackend = errors.New("unknown media backend")
)

// maxNameAttempts bounds the " (n)" suffixes tried when a display name is taken.
const maxNameAttempts = 32

// Entry describes a new item in the shared media collection.
type Entry struct {
	DisplayName string `json:"display_name"`
	MIMEType    string `json:"mime_type"`
	Collection  string `json:"collection"`
}

// Validate checks the entry has everything a store needs to create it.
func (e Entry) Validate() error {
	if e.DisplayName == "" || strings.ContainsAny(e.DisplayName, `/\`) {
		return fmt.Errorf("%w: bad display name %q", ErrInvalidEntry, e.DisplayName)
	}
	if e.MIMEType == "" {
		return fmt.Errorf("%w: missing mime type", ErrInvalidEntry)
	}
	if e.Collection == "" || strings.Contains(e.Collection, "..") {
		return fmt.Errorf("%w: bad collection %q", ErrInvalidEntry, e.Collection)
	}
	return nil
}

// EntryWriter streams the content of a freshly created entry. The entry is
// complete only once Close returns nil; Abort gives it up instead and leaves
// nothing behind. Only the first of Close and Abort has an effect.
type EntryWriter interface {
	io.Writer
	Close() error
	Abort(cause error) error
	// Locator returns the resource locator of the created entry.
	Locator() string
	// DisplayName returns the name the store actually assigned.
	DisplayName() string
}

// MediaStore is the shared media collection images are persisted into.
type MediaStore interface {
	// Create reserves a new entry and returns a writer for its content.
	Create(ctx context.Context, entry Entry) (EntryWriter, error)
	// Delete removes the entry behind locator.
	Delete(ctx context.Context, locator string) error
}

// candidateName returns the n-th name to try for displayName: the name itself
// first, then "name (1).ext", "name (2).ext" and so on.
func candidateName(displayName string, n int) string {
	if n == 0 {
		return displayName
	}
	ext := path.Ext(displayName)
	base := strings.TrimSuffix(displayName, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

const (
	BackendFilesystem = "filesystem"
	BackendMinio      = "minio"
)

// Config selects and configures the media store backend.
type Config struct {
	Backend string
	Root    string
	Minio   MinioConfig
}

// New opens the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (MediaStore, error) {
	switch cfg.Backend {
	case BackendFilesystem, "":
		return NewFilesystemStore(cfg.Root)
	case BackendMinio:
		return NewMinioStore(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
