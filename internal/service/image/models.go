package image

import (
	"strconv"
	"time"

	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

// SaveAction is the bridge action name of the save operation.
const SaveAction = "saveImageDataToLibrary"

// DisplayNamePrefix starts the name of every saved image.
const DisplayNamePrefix = "c2i_"

// Format is the encoding a saved image is written in.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat maps exactly "png" to FormatPNG; anything else, "PNG"
// included, is saved as JPEG.
func ParseFormat(s string) Format {
	if s == string(FormatPNG) {
		return FormatPNG
	}
	return FormatJPEG
}

func (f Format) Extension() string {
	if f == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// ImageRequest is one save invocation.
type ImageRequest struct {
	// Payload is the base64 image, optionally as a data URL.
	Payload string
	Format  Format
}

// NewEntry describes the media entry an image in format f saved at t gets.
func NewEntry(f Format, t time.Time) storagemedia.Entry {
	return storagemedia.Entry{
		DisplayName: DisplayNamePrefix + strconv.FormatInt(t.UnixMilli(), 10) + f.Extension(),
		MIMEType:    f.MIMEType(),
		Collection:  storagemedia.CollectionPictures,
	}
}

// State is the progress of a single save request.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateAwaitingPermission
	StateCreating
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateCreating:
		return "creating"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback receives the outcome of a save. Exactly one of its methods is
// called, exactly once.
type Callback interface {
	Success(locator string)
	Error(err error)
}

// CallbackFuncs adapts two functions to Callback.
type CallbackFuncs struct {
	OnSuccess func(locator string)
	OnError   func(err error)
}

func (c CallbackFuncs) Success(locator string) { c.OnSuccess(locator) }
func (c CallbackFuncs) Error(err error)         { c.OnError(err) }

// Result is the outcome of a save as delivered on a channel by ResultChan.
type Result struct {
	Locator string
	Err     error
}

// ResultChan returns a Callback that sends the outcome on the returned
// buffered channel.
func ResultChan() (Callback, <-chan Result) {
	ch := make(chan Result, 1)
	return CallbackFuncs{
		OnSuccess: func(locator string) { ch <- Result{Locator: locator} },
		OnError:   func(err error) { ch <- Result{Err: err} },
	}, ch
}
