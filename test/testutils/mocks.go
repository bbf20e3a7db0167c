// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// MockRecipeService provides a mock implementation of outbound.RecipeService
type MockRecipeService struct {
	mock.Mock
}

// NewMockRecipeService creates a new mock recipe service
func NewMockRecipeService() *MockRecipeService {
	return &MockRecipeService{}
}

// Show looks up a recipe
func (m *MockRecipeService) Show(ctx context.Context, id string) (*outbound.ShowResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ShowResult), args.Error(1)
}

// Delete deletes a recipe
func (m *MockRecipeService) Delete(ctx context.Context, id string) (*outbound.DeleteResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.DeleteResult), args.Error(1)
}

// MockCommentService provides a mock implementation of outbound.CommentService
type MockCommentService struct {
	mock.Mock
}

// NewMockCommentService creates a new mock comment service
func NewMockCommentService() *MockCommentService {
	return &MockCommentService{}
}

// Create creates a comment
func (m *MockCommentService) Create(ctx context.Context, recipeID string, draft recipe.Draft) (*outbound.CreateCommentResult, error) {
	args := m.Called(ctx, recipeID, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.CreateCommentResult), args.Error(1)
}

// RecordingNavigator records navigations
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

// Navigate records path
func (n *RecordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns the recorded navigations
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// StaticConfirmer answers every prompt with Answer and records the prompts
type StaticConfirmer struct {
	Answer bool

	mu      sync.Mutex
	prompts []string
}

// Confirm records the prompt and returns Answer
func (c *StaticConfirmer) Confirm(_ context.Context, prompt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.Answer
}

// Prompts returns the prompts shown so far
func (c *StaticConfirmer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// ManualTimer is a timer fired by the test
type ManualTimer struct {
	Delay   time.Duration
	fn      func()
	mu      sync.Mutex
	stopped bool
}

// Stop prevents the timer from firing
func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Stopped reports whether Stop was called
func (t *ManualTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire runs the scheduled function unless the timer was stopped
func (t *ManualTimer) Fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.fn()
	}
}

// ManualScheduler hands out ManualTimers instead of real ones
type ManualScheduler struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// AfterFunc records a timer for f
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ManualTimer{Delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Timers returns the timers scheduled so far
func (s *ManualScheduler) Timers() []*ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ManualTimer(nil), s.timers...)
}
