package recipeview

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"go.uber.org/zap"
)

// ChangeDraft merges one composer field into the draft
func (v *View) ChangeDraft(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closedLocked() {
		return
	}
	v.state.Draft = v.state.Draft.Set(name, value)
}

// PostComment sends the draft to the comment service. When the service
// answers with a comment, a comment authored by the current user with the
// returned body is prepended to the feed. The draft is kept as typed.
// A response without a comment changes nothing.
func (v *View) PostComment(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closedLocked():
		v.mu.Unlock()
		return ErrClosed
	case v.current.IsAnonymous():
		v.mu.Unlock()
		v.metrics.ObserveMutation("comment", "anonymous")
		return ErrAnonymous
	case v.posting:
		v.mu.Unlock()
		v.metrics.ObserveMutation("comment", "busy")
		return ErrBusy
	}
	v.posting = true
	draft := v.state.Draft.Clone()
	author := v.current.Name
	v.mu.Unlock()

	rctx, done := v.requestContext(ctx)
	rctx, span := v.startSpan(rctx, "PostComment")
	res, err := v.comments.Create(rctx, v.id, draft)
	endSpan(span, err)
	done()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.posting = false

	if v.closedLocked() {
		v.logger.Debug("Dropping comment result for closed view")
		return ErrClosed
	}

	if err != nil {
		v.metrics.ObserveMutation("comment", "error")
		v.logger.Warn("Failed to post comment", zap.Error(err))
		return fmt.Errorf("post comment on recipe %s: %w", v.id, err)
	}

	if res == nil || res.Comment == nil {
		v.metrics.ObserveMutation("comment", "no_payload")
		v.logger.Debug("Comment service returned no comment")
		return nil
	}

	posted := recipe.NewComment(author, res.Comment.Body)
	if res.Comment.ID != "" {
		posted.ID = res.Comment.ID
	}

	comments := make([]recipe.Comment, 0, len(v.state.Comments)+1)
	comments = append(comments, posted)
	comments = append(comments, v.state.Comments...)
	v.state.Comments = comments

	v.metrics.ObserveMutation("comment", "ok")
	v.logger.Debug("Comment posted", zap.String("comment_id", posted.ID))

	return nil
}

// RequestDelete asks the confirmer before deleting. A declined prompt, or no
// confirmer at all, issues no request and leaves state unchanged. No prompt
// is shown while a delete is in flight, and closing the view cancels an open
// prompt.
func (v *View) RequestDelete(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closedLocked():
		v.mu.Unlock()
		return ErrClosed
	case v.deleting:
		v.mu.Unlock()
		v.metrics.ObserveMutation("delete", "busy")
		return ErrBusy
	}
	v.mu.Unlock()

	if v.confirmer == nil {
		v.metrics.ObserveMutation("delete", "declined")
		return nil
	}

	cctx, done := v.requestContext(ctx)
	confirmed := v.confirmer.Confirm(cctx, v.settings.ConfirmPrompt)
	done()

	if !confirmed {
		v.mu.Lock()
		closed := v.closedLocked()
		v.mu.Unlock()
		if closed {
			return ErrClosed
		}
		v.metrics.ObserveMutation("delete", "declined")
		return nil
	}

	return v.Delete(ctx)
}

// Delete deletes the recipe. The caller has already obtained confirmation.
// The service's message is shown verbatim. When the service reports the
// recipe as deleted, navigation to the redirect path is scheduled after the
// redirect delay.
func (v *View) Delete(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.closedLocked():
		v.mu.Unlock()
		return ErrClosed
	case v.deleting:
		v.mu.Unlock()
		v.metrics.ObserveMutation("delete", "busy")
		return ErrBusy
	}
	v.deleting = true
	v.mu.Unlock()

	rctx, done := v.requestContext(ctx)
	rctx, span := v.startSpan(rctx, "Delete")
	res, err := v.recipes.Delete(rctx, v.id)
	endSpan(span, err)
	done()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleting = false

	if v.closedLocked() {
		v.logger.Debug("Dropping delete result for closed view")
		return ErrClosed
	}

	if err != nil {
		v.metrics.ObserveMutation("delete", "error")
		v.logger.Warn("Failed to delete recipe", zap.Error(err))
		return fmt.Errorf("delete recipe %s: %w", v.id, err)
	}

	if res == nil {
		v.metrics.ObserveMutation("delete", "no_payload")
		return nil
	}

	v.state.Message = res.Message
	if !res.Deleted {
		v.metrics.ObserveMutation("delete", "not_deleted")
		v.logger.Info("Recipe not deleted", zap.String("message", res.Message))
		return nil
	}

	v.state.Phase = PhaseDeleted
	v.state.Redirect = &Redirect{
		Path:  v.settings.RedirectPath,
		After: v.settings.RedirectDelay,
	}
	v.scheduleNavigationLocked(v.settings.RedirectPath, v.settings.RedirectDelay)

	v.metrics.ObserveMutation("delete", "ok")
	v.logger.Info("Recipe deleted", zap.String("redirect", v.settings.RedirectPath))

	return nil
}

// scheduleNavigationLocked arms the redirect timer, replacing any earlier one.
// The timer callback only navigates if it is still the armed timer and the
// view is open.
func (v *View) scheduleNavigationLocked(path string, delay time.Duration) {
	if v.navigator == nil {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}

	var timer Stopper
	timer = v.afterFunc(delay, func() {
		v.mu.Lock()
		if v.closedLocked() || v.timer != timer {
			v.mu.Unlock()
			return
		}
		v.timer = nil
		v.state.Phase = PhaseNavigated
		nav := v.navigator
		v.mu.Unlock()

		v.logger.Debug("Navigating", zap.String("path", path))
		nav.Navigate(path)
	})
	v.timer = timer
}
