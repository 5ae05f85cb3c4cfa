package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediaapi/internal/logging"
	"mediaapi/internal/model"
	"mediaapi/internal/storage"
	storeMocks "mediaapi/internal/storage/mocks"
)

var fixedNow = time.UnixMilli(1700000000000)

func fixedClock() time.Time { return fixedNow }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type testEnv struct {
	svc  UploadService
	root string
	logs *bytes.Buffer
}

func newTestEnv(t *testing.T, mutate func(rules []Rule), opts ...Option) testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewDisk(root, "images", "documents")
	require.NoError(t, err)

	rules := RulesFromConfig(testStorageConfig())
	if mutate != nil {
		mutate(rules)
	}
	logs := &bytes.Buffer{}
	opts = append([]Option{WithClock(fixedClock), WithLogger(logging.New(logs, time.UTC))}, opts...)
	return testEnv{svc: NewUploadService(store, rules, opts...), root: root, logs: logs}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUploadService_UploadImage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		contentType string
		data        func(t *testing.T) []byte
	}{
		{name: "png", filename: "photo.png", contentType: "image/png", data: pngBytes},
		{name: "jpg", filename: "photo.jpg", contentType: "image/jpeg", data: jpegBytes},
		{name: "jpeg", filename: "photo.jpeg", contentType: "image/jpeg", data: jpegBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			data := tt.data(t)

			stored, err := env.svc.Upload(ctx, model.CategoryImages, bytes.NewReader(data), tt.filename, tt.contentType, int64(len(data)))
			require.NoError(t, err)

			assert.Equal(t, "1700000000000.jpg", stored.Filename)
			assert.Equal(t, model.CategoryImages, stored.Category)
			assert.Equal(t, "image/jpeg", stored.ContentType)

			// Only the canonical file remains; the raw upload was reaped.
			assert.Equal(t, []string{"1700000000000.jpg"}, dirNames(t, filepath.Join(env.root, "images")))

			f, err := os.Open(filepath.Join(env.root, "images", stored.Filename))
			require.NoError(t, err)
			defer f.Close()
			_, format, err := image.DecodeConfig(f)
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
		})
	}
}

func TestUploadService_UploadImageRealClock(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewDisk(root, "images", "documents")
	require.NoError(t, err)
	svc := NewUploadService(store, RulesFromConfig(testStorageConfig()), WithLogger(logging.New(io.Discard, time.UTC)))

	data := pngBytes(t)
	stored, err := svc.Upload(context.Background(), model.CategoryImages, bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{13,}\.jpg$`), stored.Filename)

	names, err := svc.List(context.Background(), model.CategoryImages)
	require.NoError(t, err)
	assert.Equal(t, []string{stored.Filename}, names)
}

func TestUploadService_UploadImageRejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		contentType string
	}{
		{name: "png declared as text", filename: "photo.png", contentType: "text/plain"},
		{name: "text declared as png", filename: "notes.txt", contentType: "image/png"},
		{name: "gif", filename: "anim.gif", contentType: "image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			data := pngBytes(t)

			stored, err := env.svc.Upload(ctx, model.CategoryImages, bytes.NewReader(data), tt.filename, tt.contentType, int64(len(data)))
			assert.Nil(t, stored)
			assert.ErrorIs(t, err, ErrUnsupportedType)
			assert.Empty(t, dirNames(t, filepath.Join(env.root, "images")))
			assert.Contains(t, env.logs.String(), "upload_rejected")
		})
	}
}

func TestUploadService_PayloadTooLarge(t *testing.T) {
	ctx := context.Background()
	limit := func(rules []Rule) {
		for i := range rules {
			rules[i].MaxBytes = 16
		}
	}

	t.Run("declared size over limit", func(t *testing.T) {
		env := newTestEnv(t, limit)
		r := strings.NewReader("%PDF-1.4 tiny")

		_, err := env.svc.Upload(ctx, model.CategoryDocuments, r, "report.pdf", "application/pdf", 17)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Equal(t, 13, r.Len(), "nothing may be read before the size check")
		assert.Empty(t, dirNames(t, filepath.Join(env.root, "documents")))
	})

	t.Run("stream longer than declared", func(t *testing.T) {
		env := newTestEnv(t, limit)
		body := strings.Repeat("x", 64)

		_, err := env.svc.Upload(ctx, model.CategoryDocuments, strings.NewReader(body), "report.pdf", "application/pdf", 4)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Empty(t, dirNames(t, filepath.Join(env.root, "documents")))
	})
}

func TestUploadService_TranscodeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	body := []byte("definitely not a png")

	stored, err := env.svc.Upload(context.Background(), model.CategoryImages, bytes.NewReader(body), "photo.png", "image/png", int64(len(body)))
	assert.Nil(t, stored)

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "images/1700000000000-photo.png", te.Key)

	// Neither the raw upload nor a partial canonical file is left behind.
	assert.Empty(t, dirNames(t, filepath.Join(env.root, "images")))
	assert.Contains(t, env.logs.String(), "image_transcode_failed")
}

func TestUploadService_OversizedDimensionsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	body := pngHeaderOnly(40000, 40000)

	stored, err := env.svc.Upload(context.Background(), model.CategoryImages, bytes.NewReader(body), "huge.png", "image/png", int64(len(body)))
	assert.Nil(t, stored)

	var te *TranscodeError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Equal(t, "transcode_failed", outcome(err))

	// The raw upload is reaped and no canonical file is written.
	assert.Empty(t, dirNames(t, filepath.Join(env.root, "images")))
}

func TestUploadService_NameCollision(t *testing.T) {
	env := newTestEnv(t, nil)
	taken := filepath.Join(env.root, "images", "1700000000000.jpg")
	require.NoError(t, os.WriteFile(taken, []byte("existing"), 0o644))

	data := pngBytes(t)
	stored, err := env.svc.Upload(context.Background(), model.CategoryImages, bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "1700000000001.jpg", stored.Filename)

	b, err := os.ReadFile(taken)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(b), "existing file must not be overwritten")
}

func TestUploadService_UploadDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("pdf is stored as received", func(t *testing.T) {
		env := newTestEnv(t, nil)
		body := "%PDF-1.4 fake body"

		stored, err := env.svc.Upload(ctx, model.CategoryDocuments, strings.NewReader(body), "Report.PDF", "application/pdf", int64(len(body)))
		require.NoError(t, err)
		assert.Equal(t, "1700000000000.pdf", stored.Filename)
		assert.Equal(t, int64(len(body)), stored.Size)

		b, err := os.ReadFile(filepath.Join(env.root, "documents", stored.Filename))
		require.NoError(t, err)
		assert.Equal(t, body, string(b))
	})

	t.Run("docx is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.svc.Upload(ctx, model.CategoryDocuments, strings.NewReader("PK"), "report.docx",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document", 2)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Only PDF", ve.Message)
		assert.Empty(t, dirNames(t, filepath.Join(env.root, "documents")))
	})

	t.Run("unreadable pdf is rejected when verification is on", func(t *testing.T) {
		env := newTestEnv(t, func(rules []Rule) { rules[1].VerifyPDF = true })

		_, err := env.svc.Upload(ctx, model.CategoryDocuments, strings.NewReader("not a pdf at all"), "report.pdf", "application/pdf", 16)
		assert.ErrorIs(t, err, ErrUnsupportedType)
		assert.Empty(t, dirNames(t, filepath.Join(env.root, "documents")))
	})
}

func TestUploadService_InvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, model.Category("videos"), strings.NewReader("x"), "a.mp4", "video/mp4", 1)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = env.svc.Upload(ctx, model.CategoryImages, nil, "a.png", "image/png", 1)
	assert.ErrorIs(t, err, ErrReaderNil)

	_, err = env.svc.Upload(ctx, model.CategoryImages, strings.NewReader("x"), "../", "image/png", 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUploadService_CleanupFailureDoesNotMaskResult(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	logs := &bytes.Buffer{}
	svc := NewUploadService(mStore, RulesFromConfig(testStorageConfig()),
		WithClock(fixedClock), WithLogger(logging.New(logs, time.UTC)))

	data := pngBytes(t)
	drain := func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
		n, _ := io.Copy(io.Discard, r)
		return storage.ObjectInfo{Key: key, Name: filepath.Base(key), Size: n, ContentType: opt.ContentType}
	}

	mStore.On("Put", mock.Anything, "images/1700000000000-photo.png", mock.Anything, mock.Anything).Return(drain, nil).Once()
	mStore.On("Open", mock.Anything, "images/1700000000000-photo.png").
		Return(io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Size: int64(len(data))}, nil).Once()
	mStore.On("Put", mock.Anything, "images/1700000000000.jpg", mock.Anything, mock.Anything).Return(drain, nil).Once()
	mStore.On("Delete", mock.Anything, "images/1700000000000-photo.png").Return(errors.New("permission denied")).Once()

	stored, err := svc.Upload(ctx, model.CategoryImages, bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, "1700000000000.jpg", stored.Filename)
	assert.Contains(t, logs.String(), "temp_file_cleanup_failed")
	mStore.AssertExpectations(t)
}

func TestUploadService_ReapRunsOnceOnTranscodeFailure(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	svc := NewUploadService(mStore, RulesFromConfig(testStorageConfig()),
		WithClock(fixedClock), WithLogger(logging.New(io.Discard, time.UTC)))

	drain := func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
		io.Copy(io.Discard, r)
		return storage.ObjectInfo{Key: key, Name: filepath.Base(key)}
	}

	mStore.On("Put", mock.Anything, "images/1700000000000-photo.png", mock.Anything, mock.Anything).Return(drain, nil).Once()
	mStore.On("Open", mock.Anything, "images/1700000000000-photo.png").
		Return(io.NopCloser(strings.NewReader("garbage")), storage.ObjectInfo{}, nil).Once()
	mStore.On("Put", mock.Anything, "images/1700000000000.jpg", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("write images/1700000000000.jpg: decode image: bad")).Once()
	// Already gone is not a cleanup failure.
	mStore.On("Delete", mock.Anything, "images/1700000000000-photo.png").Return(storage.ErrObjectNotFound).Once()

	_, err := svc.Upload(ctx, model.CategoryImages, strings.NewReader("garbage"), "photo.png", "image/png", 7)
	var te *TranscodeError
	assert.ErrorAs(t, err, &te)
	mStore.AssertExpectations(t)
}

func TestUploadService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	env := newTestEnv(t, nil, WithMetrics(m))
	ctx := context.Background()
	data := pngBytes(t)

	_, err = env.svc.Upload(ctx, model.CategoryImages, bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	require.NoError(t, err)
	_, _ = env.svc.Upload(ctx, model.CategoryImages, bytes.NewReader(data), "photo.png", "text/plain", int64(len(data)))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("images", "stored")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("images", "rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transcodeDuration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration must fail")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "stored", outcome(nil))
	assert.Equal(t, "rejected", outcome(&ValidationError{}))
	assert.Equal(t, "too_large", outcome(ErrPayloadTooLarge))
	assert.Equal(t, "transcode_failed", outcome(&TranscodeError{Err: errors.New("x")}))
	assert.Equal(t, "error", outcome(errors.New("disk full")))
}
