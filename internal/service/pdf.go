package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var errNotPDF = errors.New("not a readable pdf")

// verifyPDF parses the stored document and fails unless it has at least one page.
func (s *uploadService) verifyPDF(ctx context.Context, key string) (err error) {
	rc, info, err := s.store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()

	ra, ok := rc.(io.ReaderAt)
	if !ok {
		b, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		ra = bytes.NewReader(b)
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errNotPDF, r)
		}
	}()

	r, err := pdf.NewReader(ra, info.Size)
	if err != nil {
		return fmt.Errorf("%w: %v", errNotPDF, err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("%w: no pages", errNotPDF)
	}
	return nil
}
