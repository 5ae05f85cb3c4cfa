package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mediaapi/internal/config"
	"mediaapi/internal/logging"
	"mediaapi/internal/model"
	"mediaapi/internal/storage"
)

var tracer = otel.Tracer("mediaapi/internal/service")

// errCanonicalAbandoned unblocks the encoder when the canonical write gives up early.
var errCanonicalAbandoned = errors.New("canonical write abandoned")

// UploadService defines the upload and listing use cases for every category.
type UploadService interface {
	// Upload validates the declared name and MIME type against the category rule,
	// stores the bytes and, for categories with a canonical format, replaces them
	// with a re-encoded copy. The returned file carries the final stored name.
	Upload(ctx context.Context, cat model.Category, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error)

	// List returns the names currently stored for the category.
	List(ctx context.Context, cat model.Category) ([]string, error)
}

// Option customizes an UploadService.
type Option func(*uploadService)

// WithTranscoder replaces the default JPEG transcoder.
func WithTranscoder(t Transcoder) Option {
	return func(s *uploadService) { s.transcoder = t }
}

// WithLogger sets the JSON logger used for rejections and cleanup failures.
func WithLogger(l *logging.Logger) Option {
	return func(s *uploadService) { s.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *uploadService) { s.metrics = m }
}

// WithClock overrides the time source used for generated names.
func WithClock(now func() time.Time) Option {
	return func(s *uploadService) { s.now = now }
}

// uploadService is the disk backed implementation of UploadService.
type uploadService struct {
	store      storage.Storage
	rules      map[model.Category]Rule
	transcoder Transcoder
	log        *logging.Logger
	metrics    *Metrics
	now        func() time.Time
}

// NewUploadService constructs a new UploadService for the given category rules.
func NewUploadService(store storage.Storage, rules []Rule, opts ...Option) UploadService {
	s := &uploadService{
		store:      store,
		rules:      make(map[model.Category]Rule, len(rules)),
		transcoder: &JPEGTranscoder{Quality: 80, AutoOrient: true, MaxPixels: config.DefaultMaxPixels},
		log:        logging.Default(),
		now:        time.Now,
	}
	for _, r := range rules {
		s.rules[r.Category] = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *uploadService) Upload(ctx context.Context, cat model.Category, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error) {
	rule, ok := s.rules[cat]
	if !ok {
		return nil, ErrUnknownCategory
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	ctx, span := tracer.Start(ctx, "service.upload", trace.WithAttributes(
		attribute.String("upload.category", string(cat)),
		attribute.String("upload.content_type", contentType),
		attribute.Int64("upload.size", size),
	))
	defer span.End()

	stored, err := s.upload(ctx, rule, r, originalFilename, contentType, size)
	s.metrics.observeUpload(cat, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return nil, err
	}
	return stored, nil
}

func (s *uploadService) upload(ctx context.Context, rule Rule, r io.Reader, originalFilename, contentType string, size int64) (*model.StoredFile, error) {
	if err := rule.Validate(originalFilename, contentType); err != nil {
		s.log.Warn("upload_rejected", map[string]any{
			"component":    "upload",
			"category":     rule.Category,
			"filename":     originalFilename,
			"ext":          extension(originalFilename),
			"content_type": contentType,
		})
		return nil, err
	}
	if rule.MaxBytes > 0 && size > rule.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, size, rule.MaxBytes)
	}

	original := sanitizeFileName(originalFilename)
	if original == "" {
		return nil, &ValidationError{Category: rule.Category, Filename: originalFilename, ContentType: contentType, Message: rule.Message}
	}

	ext := extension(original)
	name := func(ms int64) string { return documentName(ms, ext) }
	if rule.Canonical != "" {
		name = func(ms int64) string { return rawImageName(ms, original) }
	}

	raw, err := s.putUnique(ctx, rule, name, r, storage.PutObjectOptions{
		MaxSize:     rule.MaxBytes,
		ContentType: contentType,
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		}
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if rule.Canonical == "" {
		if rule.VerifyPDF {
			if err := s.verifyPDF(ctx, raw.Key); err != nil {
				s.reap(ctx, raw.Key)
				s.log.Warn("upload_rejected", map[string]any{
					"component": "upload",
					"category":  rule.Category,
					"filename":  originalFilename,
					"reason":    err.Error(),
				})
				return nil, &ValidationError{Category: rule.Category, Filename: originalFilename, Extension: ext, ContentType: contentType, Message: rule.Message}
			}
		}
		return &model.StoredFile{
			Category:    rule.Category,
			Filename:    raw.Name,
			Size:        raw.Size,
			ContentType: contentType,
			CreatedAt:   raw.LastModified,
		}, nil
	}

	// The raw upload is removed exactly once, whatever the transcode outcome.
	defer s.reap(ctx, raw.Key)

	out, err := s.transcode(ctx, rule, raw.Key)
	if err != nil {
		s.log.Error("image_transcode_failed", err, map[string]any{
			"component": "upload",
			"category":  rule.Category,
			"key":       raw.Key,
		})
		return nil, err
	}
	return &model.StoredFile{
		Category:    rule.Category,
		Filename:    out.Name,
		Size:        out.Size,
		ContentType: out.ContentType,
		CreatedAt:   out.LastModified,
	}, nil
}

// putUnique stores r under the first free name, starting at the current
// millisecond and moving forward one millisecond per collision.
func (s *uploadService) putUnique(ctx context.Context, rule Rule, name func(ms int64) string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	ms := s.now().UnixMilli()
	for i := int64(0); i < maxNameAttempts; i++ {
		key := path.Join(rule.Dir, name(ms+i))
		info, err := s.store.Put(ctx, key, r, opt)
		if errors.Is(err, storage.ErrObjectExists) {
			continue
		}
		return info, err
	}
	return storage.ObjectInfo{}, ErrNameExhausted
}

// transcode streams the raw upload through the transcoder into a new canonical file.
func (s *uploadService) transcode(ctx context.Context, rule Rule, rawKey string) (storage.ObjectInfo, error) {
	ctx, span := tracer.Start(ctx, "service.transcode", trace.WithAttributes(
		attribute.String("upload.raw_key", rawKey),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.observeTranscode(time.Since(start).Seconds()) }()

	src, _, err := s.store.Open(ctx, rawKey)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("open raw upload: %w", err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := s.transcoder.Transcode(ctx, pw, src)
		pw.CloseWithError(err)
		errc <- err
	}()

	info, err := s.putUnique(ctx, rule, func(ms int64) string { return canonicalName(ms, rule.Canonical) }, pr, storage.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	pr.CloseWithError(errCanonicalAbandoned)
	terr := <-errc

	switch {
	case terr != nil && !errors.Is(terr, errCanonicalAbandoned):
		span.RecordError(terr)
		return storage.ObjectInfo{}, &TranscodeError{Key: rawKey, Err: terr}
	case err != nil:
		span.RecordError(err)
		return storage.ObjectInfo{}, fmt.Errorf("store canonical image: %w", err)
	}
	return info, nil
}
