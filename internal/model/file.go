package model

import "time"

// Category is a fixed upload class with its own validation rules and storage directory.
type Category string

const (
	CategoryImages    Category = "images"
	CategoryDocuments Category = "documents"
)

// Categories lists every supported category in a stable order.
var Categories = []Category{CategoryImages, CategoryDocuments}

// StoredFile describes a file persisted in a category directory.
// The filesystem is the only source of truth; this value is never stored separately.
type StoredFile struct {
	Category    Category
	Filename    string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}
