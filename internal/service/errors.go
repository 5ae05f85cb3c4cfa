package service

import (
	"errors"
	"fmt"

	"mediaapi/internal/model"
)

var (
	ErrReaderNil       = errors.New("reader is nil")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNameExhausted   = errors.New("could not allocate a unique filename")
	ErrImageTooLarge   = errors.New("image dimensions exceed pixel limit")
)

// ValidationError reports an upload rejected by its category's allow-list.
// Message is safe to show to clients.
type ValidationError struct {
	Category    model.Category
	Filename    string
	Extension   string
	ContentType string
	Message     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (file=%q ext=%q mime=%q)", ErrUnsupportedType, e.Category, e.Filename, e.Extension, e.ContentType)
}

func (e *ValidationError) Unwrap() error { return ErrUnsupportedType }

// TranscodeError reports a failure to decode or re-encode an accepted image.
type TranscodeError struct {
	Key string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Key, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// DirectoryReadError reports that a category directory could not be listed.
type DirectoryReadError struct {
	Category model.Category
	Err      error
}

func (e *DirectoryReadError) Error() string {
	return fmt.Sprintf("read %s directory: %v", e.Category, e.Err)
}

func (e *DirectoryReadError) Unwrap() error { return e.Err }
