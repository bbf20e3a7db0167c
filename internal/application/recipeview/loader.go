package recipeview

import (
	"context"
	"errors"
	"fmt"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"go.uber.org/zap"
)

// Mount loads the recipe. Only the first call per view issues a request;
// later calls return nil without touching state. A failed or empty load
// leaves the initial empty recipe in place and is never retried.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.closedLocked() {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	if v.id == "" {
		v.state.Phase = PhaseEmpty
		v.mu.Unlock()
		v.metrics.ObserveLoad("error")
		return recipe.ErrEmptyRecipeID
	}
	v.mu.Unlock()

	rctx, done := v.requestContext(ctx)
	defer done()

	rctx, span := v.startSpan(rctx, "Mount")
	res, err := v.recipes.Show(rctx, v.id)
	endSpan(span, err)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closedLocked() {
		v.logger.Debug("Dropping recipe load result for closed view")
		return ErrClosed
	}

	if err != nil {
		v.state.Phase = PhaseEmpty
		if errors.Is(err, recipe.ErrRecipeNotFound) {
			v.metrics.ObserveLoad("not_found")
			v.logger.Info("Recipe not found")
		} else {
			v.metrics.ObserveLoad("error")
			v.logger.Warn("Failed to load recipe", zap.Error(err))
		}
		return fmt.Errorf("load recipe %s: %w", v.id, err)
	}

	if res == nil || res.Recipe == nil {
		v.state.Phase = PhaseEmpty
		v.metrics.ObserveLoad("empty")
		v.logger.Debug("Recipe service returned no recipe")
		return nil
	}

	loaded := res.Recipe.Clone()
	comments := make([]recipe.Comment, 0, len(loaded.Comments))
	for _, c := range loaded.Comments {
		comments = append(comments, c.EnsureID())
	}

	v.state.Recipe = loaded
	v.state.Comments = comments
	v.state.ShowEditDelete = loaded.OwnedBy(v.current)
	v.state.Phase = PhaseLoaded
	v.metrics.ObserveLoad("ok")

	v.logger.Debug("Recipe loaded",
		zap.Int("comments", len(comments)),
		zap.Bool("owner", v.state.ShowEditDelete),
	)

	return nil
}
