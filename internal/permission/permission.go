// Package permission answers whether writing to the shared media collection
// needs an explicit grant, and carries grant requests to whoever can answer them.
package permission

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// WriteExternalStorage is the name of the capability requested from the user.
const WriteExternalStorage = "WRITE_EXTERNAL_STORAGE"

// ScopedStorageSDK is the first platform version with managed shared storage,
// where saving into the pictures collection needs no grant.
const ScopedStorageSDK = 30

var (
	ErrDuplicateRequest = errors.New("permission request already pending")
	ErrNoPrompt         = errors.New("permission prompt unavailable")
)

// Authorizer decides whether a save may touch shared storage.
type Authorizer interface {
	// Required reports whether an explicit grant is needed at all.
	Required(ctx context.Context) bool
	// Granted reports whether the grant is already held.
	Granted(ctx context.Context) bool
	// Request asks for the grant. resume is called exactly once with the
	// answer, possibly long after Request returned and from another goroutine.
	// When Request returns an error, resume is never called.
	Request(ctx context.Context, requestID string, resume func(granted bool)) error
}

// RequiredForPlatform reports whether a client on the given platform version
// has to hold an explicit write grant.
func RequiredForPlatform(sdk int) bool {
	return sdk < ScopedStorageSDK
}

// Scoped is the Authorizer for platforms with managed storage: nothing to ask.
type Scoped struct{}

func (Scoped) Required(context.Context) bool { return false }
func (Scoped) Granted(context.Context) bool  { return true }

func (Scoped) Request(_ context.Context, _ string, resume func(bool)) error {
	resume(true)
	return nil
}

// PromptFunc shows a grant request to the user behind requestID.
type PromptFunc func(ctx context.Context, requestID string) error

// Broker keeps grant requests waiting for an asynchronous answer, keyed by
// request id. A grant, once given, holds for the broker's lifetime.
type Broker struct {
	mu       sync.Mutex
	required bool
	granted  bool
	prompt   PromptFunc
	waiting  map[string]func(bool)
}

// NewBroker creates a broker. With required false it behaves like Scoped.
func NewBroker(required bool, prompt PromptFunc) *Broker {
	return &Broker{
		required: required,
		prompt:   prompt,
		waiting:  make(map[string]func(bool)),
	}
}

func (b *Broker) Required(context.Context) bool {
	return b.required
}

func (b *Broker) Granted(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.required || b.granted
}

func (b *Broker) Request(ctx context.Context, requestID string, resume func(bool)) error {
	if b.prompt == nil {
		return ErrNoPrompt
	}

	b.mu.Lock()
	if _, ok := b.waiting[requestID]; ok {
		b.mu.Unlock()
		return ErrDuplicateRequest
	}
	b.waiting[requestID] = resume
	b.mu.Unlock()

	log.Ctx(ctx).Debug().Str("request_id", requestID).Msg("requesting storage permission")

	if err := b.prompt(ctx, requestID); err != nil {
		b.mu.Lock()
		delete(b.waiting, requestID)
		b.mu.Unlock()
		return err
	}
	return nil
}

// Deliver hands the user's answer to the request waiting under requestID.
// It returns false when nothing is waiting there, including repeated answers.
func (b *Broker) Deliver(requestID string, granted bool) bool {
	b.mu.Lock()
	resume, ok := b.waiting[requestID]
	if ok {
		delete(b.waiting, requestID)
		if granted {
			b.granted = true
		}
	}
	b.mu.Unlock()

	if ok {
		resume(granted)
	}
	return ok
}

// Pending lists the ids of requests still waiting for an answer.
func (b *Broker) Pending() []string {
	b.mu.Lock()
	ids := make([]string, 0, len(b.waiting))
	for id := range b.waiting {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	sort.Strings(ids)
	return ids
}
