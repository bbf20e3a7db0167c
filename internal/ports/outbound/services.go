// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the collaborators the recipe view uses to reach the outside world
package outbound

import (
	"context"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
)

// RecipeService is the remote recipe API
type RecipeService interface {
	Show(ctx context.Context, id string) (*ShowResult, error)
	Delete(ctx context.Context, id string) (*DeleteResult, error)
}

// CommentService is the remote comment API
type CommentService interface {
	Create(ctx context.Context, recipeID string, draft recipe.Draft) (*CreateCommentResult, error)
}

// ShowResult is the response to a recipe lookup. Recipe is nil when the
// service answered without a recipe payload.
type ShowResult struct {
	Recipe *recipe.Recipe
}

// DeleteResult is the response to a recipe deletion
type DeleteResult struct {
	// Deleted is the structured success signal
	Deleted bool
	// Message is shown to the user verbatim, success or not
	Message string
}

// CreateCommentResult is the response to a comment creation. Comment is nil
// when the service answered without a comment payload.
type CreateCommentResult struct {
	Comment *recipe.Comment
}

// Navigator moves the user to another route
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

// Navigate calls f(path)
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Confirmer asks the user a blocking yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmerFunc adapts a function to Confirmer
type ConfirmerFunc func(ctx context.Context, prompt string) bool

// Confirm calls f(ctx, prompt)
func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }
