package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/recipe-api-be/internal/models"
)

// AttributeRepository is the persistence contract ResolveAttributes needs.
// FindByOwnerAndName returns ErrNotFound when no attribute matches.
type AttributeRepository interface {
	FindByOwnerAndName(ctx context.Context, ownerID, name string) (models.Attribute, error)
	Create(ctx context.Context, ownerID, name string) (models.Attribute, error)
}

// ResolveAttributes maps descriptors to attributes owned by ownerID, reusing
// exact (owner, name) matches and creating the rest. The result keeps input
// order with duplicates collapsed.
//
// Created attributes are persisted as they are encountered. If a later
// descriptor fails, the ones created before it stay in the store.
func ResolveAttributes(ctx context.Context, repo AttributeRepository, ownerID string, descriptors []models.AttributeDescriptor) ([]models.Attribute, error) {
	resolved := make([]models.Attribute, 0, len(descriptors))
	seenNames := make(map[string]bool, len(descriptors))
	seenIDs := make(map[int64]bool, len(descriptors))

	for _, d := range descriptors {
		if seenNames[d.Name] {
			continue
		}
		seenNames[d.Name] = true

		attr, err := repo.FindByOwnerAndName(ctx, ownerID, d.Name)
		if errors.Is(err, ErrNotFound) {
			attr, err = repo.Create(ctx, ownerID, d.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", d.Name, err)
		}

		if seenIDs[attr.ID] {
			continue
		}
		seenIDs[attr.ID] = true
		resolved = append(resolved, attr)
	}
	return resolved, nil
}

// attributeIDs returns the ids of attrs in order.
func attributeIDs(attrs []models.Attribute) []int64 {
	ids := make([]int64, len(attrs))
	for i, a := range attrs {
		ids[i] = a.ID
	}
	return ids
}
