package service

import (
	"path"
	"regexp"
	"strings"

	"mediaapi/internal/config"
	"mediaapi/internal/model"
)

// Rule is the per-category policy applied by the upload pipeline.
type Rule struct {
	Category model.Category
	// Dir is the storage key prefix for the category.
	Dir      string
	MaxBytes int64
	// Types are the accepted lowercased extensions, without the dot.
	Types []string
	// Canonical is the extension every accepted upload is re-encoded to.
	// Empty means files are stored as received.
	Canonical string
	// FilterListing limits List to names carrying an accepted extension.
	FilterListing bool
	// VerifyPDF parses stored documents and rejects those that are not readable PDFs.
	VerifyPDF bool
	// Message is the client-facing rejection text.
	Message string

	mimeRe *regexp.Regexp
	nameRe *regexp.Regexp
}

// NewRule compiles the matchers for the given accepted types.
func NewRule(cat model.Category, dir string, maxBytes int64, types []string) Rule {
	quoted := make([]string, 0, len(types))
	for _, t := range types {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
	}
	alt := strings.Join(quoted, "|")
	return Rule{
		Category: cat,
		Dir:      dir,
		MaxBytes: maxBytes,
		Types:    types,
		mimeRe:   regexp.MustCompile(`(?i)(?:` + alt + `)`),
		nameRe:   regexp.MustCompile(`(?i)\.(?:` + alt + `)$`),
	}
}

// RulesFromConfig builds the image and document rules.
func RulesFromConfig(cfg config.StorageConfig) []Rule {
	images := NewRule(model.CategoryImages, cfg.ImagesDir, cfg.ImagesMaxBytes, cfg.AllowedImageTypes)
	images.Canonical = "jpg"
	images.FilterListing = true
	images.Message = allowedMessage(cfg.AllowedImageTypes)

	docs := NewRule(model.CategoryDocuments, cfg.DocumentsDir, cfg.DocumentsMaxBytes, cfg.AllowedDocumentTypes)
	docs.VerifyPDF = cfg.VerifyPDF
	docs.Message = allowedMessage(cfg.AllowedDocumentTypes)

	return []Rule{images, docs}
}

// Validate accepts the upload only when both the extension and the declared
// MIME type match the allow-list.
func (r Rule) Validate(filename, contentType string) error {
	ext := extension(filename)
	if r.acceptsExtension(ext) && r.mimeRe.MatchString(contentType) {
		return nil
	}
	return &ValidationError{
		Category:    r.Category,
		Filename:    filename,
		Extension:   ext,
		ContentType: contentType,
		Message:     r.Message,
	}
}

// Listed reports whether name belongs in the category listing.
func (r Rule) Listed(name string) bool {
	return !r.FilterListing || r.nameRe.MatchString(name)
}

func (r Rule) acceptsExtension(ext string) bool {
	for _, t := range r.Types {
		if ext == t {
			return true
		}
	}
	return false
}

// extension returns the lowercased extension of name without the leading dot.
func extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// allowedMessage renders e.g. "Only JPEG, JPG, and PNG files are allowed!".
func allowedMessage(types []string) string {
	upper := make([]string, len(types))
	for i, t := range types {
		upper[i] = strings.ToUpper(t)
	}
	switch len(upper) {
	case 0:
		return "Unsupported file type"
	case 1:
		return "Only " + upper[0]
	case 2:
		return "Only " + upper[0] + " and " + upper[1] + " files are allowed!"
	}
	return "Only " + strings.Join(upper[:len(upper)-1], ", ") + ", and " + upper[len(upper)-1] + " files are allowed!"
}
