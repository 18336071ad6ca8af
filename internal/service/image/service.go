package image

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bulatminnakhmetov/canvas2image/internal/metrics"
	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

// Scanner makes a freshly written entry visible to media listings.
type Scanner interface {
	Scan(ctx context.Context, entry storagemedia.Entry, locator string) error
}

// Unscanner is a Scanner that can also forget an entry.
type Unscanner interface {
	Unscan(ctx context.Context, locator string) error
}

// ImageService saves images into the shared media collection
type ImageService interface {
	SaveImage(ctx context.Context, req ImageRequest, auth permission.Authorizer, cb Callback)
	DeleteImage(ctx context.Context, locator string) error
}

// ServiceImpl is the ImageService implementation
type ServiceImpl struct {
	store   storagemedia.MediaStore
	scanner Scanner
	metrics *metrics.Registry
	now     func() time.Time
	// scans tracks background rescans so Wait can drain them.
	scans sync.WaitGroup
}

// Option configures a ServiceImpl
type Option func(*ServiceImpl)

// WithScanner registers saved entries with scanner after each write.
func WithScanner(scanner Scanner) Option {
	return func(s *ServiceImpl) { s.scanner = scanner }
}

// WithMetrics counts saves and failures in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *ServiceImpl) { s.metrics = reg }
}

// WithClock replaces the clock entry names are derived from.
func WithClock(now func() time.Time) Option {
	return func(s *ServiceImpl) { s.now = now }
}

// NewImageService creates a new ServiceImpl on top of store
func NewImageService(store storagemedia.MediaStore, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// saveRequest is the state of one SaveImage call as it moves through the
// pipeline, possibly across the permission suspension.
type saveRequest struct {
	id     string
	format Format
	bitmap goimage.Image
	state  State
	cb     Callback
	once   sync.Once
	logger zerolog.Logger
}

func (r *saveRequest) enter(state State) {
	r.logger.Debug().Stringer("from", r.state).Stringer("to", state).Msg("save request state")
	r.state = state
}

// SaveImage decodes req, waits for storage permission when auth needs it, and
// writes the image into the pictures collection. The outcome is delivered to
// cb exactly once: synchronously, or later from the goroutine that answers
// the permission request.
func (s *ServiceImpl) SaveImage(ctx context.Context, req ImageRequest, auth permission.Authorizer, cb Callback) {
	r := &saveRequest{
		id:     uuid.NewString(),
		format: req.Format,
		state:  StateIdle,
		cb:     cb,
	}
	if r.format != FormatPNG {
		r.format = FormatJPEG
	}
	r.logger = log.Ctx(ctx).With().Str("save_id", r.id).Str("format", string(r.format)).Logger()
	ctx = r.logger.WithContext(ctx)

	if req.Payload == "" {
		s.fail(ctx, r, ErrMissingInput)
		return
	}

	r.enter(StateDecoding)
	data, err := decodePayload(req.Payload)
	if err != nil {
		s.fail(ctx, r, newSaveError(ErrDecodeFailed, err))
		return
	}
	bitmap, kind, err := decodeImage(data)
	if err != nil {
		s.fail(ctx, r, newSaveError(ErrDecodeFailed, err))
		return
	}
	r.bitmap = bitmap
	r.logger.Debug().Str("source_format", kind).Int("bytes", len(data)).
		Int("width", bitmap.Bounds().Dx()).Int("height", bitmap.Bounds().Dy()).Msg("image decoded")

	if !auth.Required(ctx) || auth.Granted(ctx) {
		s.persist(ctx, r)
		return
	}

	r.enter(StateAwaitingPermission)
	// The answer may arrive after the caller's context is done.
	resumeCtx := context.WithoutCancel(ctx)
	err = auth.Request(ctx, r.id, func(granted bool) {
		if !granted {
			s.fail(resumeCtx, r, ErrPermissionDenied)
			return
		}
		r.logger.Debug().Msg("storage permission granted")
		s.persist(resumeCtx, r)
	})
	if err != nil {
		s.fail(ctx, r, newSaveError(ErrPermissionDenied, err))
	}
}

func (s *ServiceImpl) persist(ctx context.Context, r *saveRequest) {
	r.enter(StateCreating)
	entry := NewEntry(r.format, s.now())

	w, err := s.store.Create(ctx, entry)
	if err != nil {
		s.fail(ctx, r, newSaveError(ErrStorageUnavailable, err))
		return
	}

	r.enter(StateWriting)
	locator := w.Locator()
	if err := encodeImage(w, r.bitmap, r.format); err != nil {
		if abortErr := w.Abort(err); abortErr != nil {
			r.logger.Warn().Err(abortErr).Str("locator", locator).Msg("failed to abort partial media entry")
		}
		s.fail(ctx, r, newSaveError(ErrWriteFailed, err))
		return
	}
	if err := w.Close(); err != nil {
		s.discard(ctx, locator)
		s.fail(ctx, r, newSaveError(ErrWriteFailed, err))
		return
	}

	entry.DisplayName = w.DisplayName()
	s.scan(ctx, entry, locator)

	r.enter(StateDone)
	s.metrics.Inc(ctx, "images_saved_total", map[string]string{"format": string(r.format)}, 1)
	r.logger.Info().Str("locator", locator).Str("display_name", entry.DisplayName).Msg("image saved")
	r.once.Do(func() { r.cb.Success(locator) })
}

// discard removes an entry whose write failed so no partial image is left behind.
func (s *ServiceImpl) discard(ctx context.Context, locator string) {
	if err := s.store.Delete(ctx, locator); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("locator", locator).Msg("failed to delete partial media entry")
	}
}

// scan registers the entry in the background; failures are only logged.
func (s *ServiceImpl) scan(ctx context.Context, entry storagemedia.Entry, locator string) {
	if s.scanner == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.scans.Add(1)
	go func() {
		defer s.scans.Done()
		if err := s.scanner.Scan(ctx, entry, locator); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("locator", locator).Msg("media scan failed")
		}
	}()
}

// DeleteImage removes a saved image from the store and from the media index.
func (s *ServiceImpl) DeleteImage(ctx context.Context, locator string) error {
	if locator == "" {
		return ErrMissingLocator
	}

	if err := s.store.Delete(ctx, locator); err != nil {
		if errors.Is(err, storagemedia.ErrEntryNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if u, ok := s.scanner.(Unscanner); ok {
		if err := u.Unscan(ctx, locator); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("locator", locator).Msg("failed to drop media index entry")
		}
	}

	s.metrics.Inc(ctx, "images_deleted_total", nil, 1)
	log.Ctx(ctx).Info().Str("locator", locator).Msg("image deleted")
	return nil
}

// Wait blocks until background rescans started so far have finished.
func (s *ServiceImpl) Wait() {
	s.scans.Wait()
}

func (s *ServiceImpl) fail(ctx context.Context, r *saveRequest, err *SaveError) {
	r.enter(StateFailed)
	s.metrics.Inc(ctx, "images_failed_total", map[string]string{"reason": string(err.Reason)}, 1)
	r.logger.Warn().Err(err).Str("reason", string(err.Reason)).Msg("image save failed")
	r.once.Do(func() { r.cb.Error(err) })
}
