package recipe

import "errors"

// Domain errors for recipe lookups

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrEmptyRecipeID  = errors.New("recipe id is required")
)
