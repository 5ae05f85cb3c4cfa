package service

import (
	"context"

	"mediaapi/internal/model"
)

// List returns the names stored for a category in filesystem order.
// Image listings only include names with an accepted image extension.
func (s *uploadService) List(ctx context.Context, cat model.Category) ([]string, error) {
	rule, ok := s.rules[cat]
	if !ok {
		return nil, ErrUnknownCategory
	}

	items, err := s.store.List(ctx, rule.Dir)
	if err != nil {
		return nil, &DirectoryReadError{Category: cat, Err: err}
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		if rule.Listed(it.Name) {
			names = append(names, it.Name)
		}
	}
	return names, nil
}
