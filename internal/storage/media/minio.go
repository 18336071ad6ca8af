package media

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MinioConfig holds the connection settings of an S3-compatible media bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base locators are built on; defaults to the endpoint.
	PublicURL string
}

// objectClient is the part of *minio.Client the store relies on.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioStore keeps the media collection as objects in a single bucket, one
// key prefix per collection.
type MinioStore struct {
	client  objectClient
	bucket  string
	baseURL string
}

// NewMinioStore connects to the endpoint and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.Bucket)
		}
		log.Ctx(ctx).Info().Str("bucket", cfg.Bucket).Msg("media bucket created")
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return newMinioStore(client, cfg.Bucket, publicURL), nil
}

func newMinioStore(client objectClient, bucket, publicURL string) *MinioStore {
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicURL, "/") + "/" + url.PathEscape(bucket) + "/",
	}
}

func (s *MinioStore) Create(ctx context.Context, entry Entry) (EntryWriter, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	key, name, err := s.freeKey(ctx, entry)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &objectEntryWriter{
		store: s,
		key:   key,
		pw:    pw,
		done:  make(chan error, 1),
		name:  name,
		loc:   s.baseURL + escapeKey(key),
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType:  entry.MIMEType,
			UserMetadata: map[string]string{"display-name": name},
		})
		// Unblocks a writer still feeding the pipe after a failed upload.
		pr.CloseWithError(err)
		w.done <- err
	}()

	log.Ctx(ctx).Debug().Str("bucket", s.bucket).Str("key", key).Msg("media object upload started")
	return w, nil
}

func (s *MinioStore) Delete(ctx context.Context, locator string) error {
	key, err := s.keyFor(locator)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %s", key)
	}
	return nil
}

// freeKey finds the first object key for entry that is not already taken.
func (s *MinioStore) freeKey(ctx context.Context, entry Entry) (string, string, error) {
	for n := 0; n < maxNameAttempts; n++ {
		name := candidateName(entry.DisplayName, n)
		key := entry.Collection + "/" + name

		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return key, name, nil
		}
		return "", "", errors.Wrapf(err, "stat object %s", key)
	}
	return "", "", errors.Wrap(ErrNameExhausted, entry.DisplayName)
}

func (s *MinioStore) keyFor(locator string) (string, error) {
	rest, ok := strings.CutPrefix(locator, s.baseURL)
	if !ok || rest == "" {
		return "", errors.Wrapf(ErrEntryNotFound, "locator %q", locator)
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", errors.Wrapf(ErrEntryNotFound, "locator %q", locator)
	}
	return key, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}

type objectEntryWriter struct {
	store *MinioStore
	key   string
	pw    *io.PipeWriter
	done  chan error
	name  string
	loc   string

	closeOnce sync.Once
	closeErr  error
}

func (w *objectEntryWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close ends the stream and waits for the upload to finish.
func (w *objectEntryWriter) Close() error {
	w.closeOnce.Do(func() {
		w.pw.Close()
		if err := <-w.done; err != nil {
			w.closeErr = errors.Wrap(err, "upload object")
		}
	})
	return w.closeErr
}

// Abort fails the upload stream with cause so no truncated object is
// committed. An upload that completed anyway is removed.
func (w *objectEntryWriter) Abort(cause error) error {
	if cause == nil {
		cause = errors.New("entry aborted")
	}
	var err error
	w.closeOnce.Do(func() {
		w.pw.CloseWithError(cause)
		w.closeErr = errors.Wrap(cause, "upload aborted")
		if <-w.done != nil {
			return
		}
		// The upload context may already be done.
		if rmErr := w.store.client.RemoveObject(context.Background(), w.store.bucket, w.key, minio.RemoveObjectOptions{}); rmErr != nil {
			err = errors.Wrapf(rmErr, "remove aborted object %s", w.key)
		}
	})
	return err
}

func (w *objectEntryWriter) Locator() string     { return w.loc }
func (w *objectEntryWriter) DisplayName() string { return w.name }
