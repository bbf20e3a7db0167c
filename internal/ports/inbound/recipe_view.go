// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// Front ends drive the recipe full view only through these interfaces
package inbound

import (
	"context"
)

// RecipeView is one mounted instance of the recipe full view
type RecipeView interface {
	// Mount loads the recipe. Only the first call issues a request.
	Mount(ctx context.Context) error
	// ChangeDraft merges a field of the comment composer into the draft
	ChangeDraft(name, value string)
	// PostComment sends the draft to the comment service
	PostComment(ctx context.Context) error
	// RequestDelete asks for confirmation and deletes the recipe when granted
	RequestDelete(ctx context.Context) error
	// Delete deletes the recipe; confirmation was already obtained
	Delete(ctx context.Context) error
	// Close disposes the view and cancels its outstanding work
	Close()
}
