package recipeview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/alchemorsel/recipeview/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeview/pkg/errors"
	"github.com/alchemorsel/recipeview/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

// ViewTestSuite exercises the view's load, render and mutate cycle
type ViewTestSuite struct {
	suite.Suite
	factory   *testutils.RecipeFactory
	recipes   *testutils.MockRecipeService
	comments  *testutils.MockCommentService
	navigator *testutils.RecordingNavigator
	scheduler *testutils.ManualScheduler
	ctx       context.Context
}

func (suite *ViewTestSuite) SetupSuite() {
	suite.factory = testutils.NewRecipeFactory(42)
	suite.ctx = context.Background()
}

func (suite *ViewTestSuite) SetupTest() {
	suite.recipes = testutils.NewMockRecipeService()
	suite.comments = testutils.NewMockCommentService()
	suite.navigator = &testutils.RecordingNavigator{}
	suite.scheduler = &testutils.ManualScheduler{}
}

func (suite *ViewTestSuite) TearDownTest() {
	suite.recipes.AssertExpectations(suite.T())
	suite.comments.AssertExpectations(suite.T())
}

func (suite *ViewTestSuite) newView(id string, current *user.CurrentUser, opts ...Option) *View {
	base := []Option{
		WithNavigator(suite.navigator),
		WithAfterFunc(func(d time.Duration, f func()) Stopper {
			return suite.scheduler.AfterFunc(d, f)
		}),
	}
	return New(id, current, suite.recipes, suite.comments, append(base, opts...)...)
}

func (suite *ViewTestSuite) mounted(current *user.CurrentUser, r *recipe.Recipe) *View {
	suite.recipes.On("Show", mock.Anything, r.ID).Return(&outbound.ShowResult{Recipe: r}, nil).Once()
	v := suite.newView(r.ID, current)
	require.NoError(suite.T(), v.Mount(suite.ctx))
	return v
}

// TestLoader covers the load contract and owner gating
func (suite *ViewTestSuite) TestLoader() {
	suite.Run("Owner_ShouldSeeEditDelete", func() {
		suite.SetupTest()
		owner := suite.factory.User()
		r := suite.factory.Recipe(owner.ID, 2)

		v := suite.mounted(owner, r)
		state := v.State()

		assert.True(suite.T(), state.ShowEditDelete)
		assert.Equal(suite.T(), PhaseLoaded, state.Phase)
		assert.Equal(suite.T(), r.Name, state.Recipe.Name)
		assert.Equal(suite.T(), r.Comments, state.Comments)
	})

	suite.Run("OtherUser_ShouldNotSeeEditDelete", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("someone-else", 0)

		v := suite.mounted(suite.factory.User(), r)

		assert.False(suite.T(), v.State().ShowEditDelete)
		assert.Equal(suite.T(), PhaseLoaded, v.State().Phase)
	})

	suite.Run("Anonymous_ShouldNotSeeEditDelete", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 1)

		v := suite.mounted(nil, r)

		assert.False(suite.T(), v.State().ShowEditDelete)
	})

	suite.Run("EmptyPayload_ShouldLeaveInitialState", func() {
		suite.SetupTest()
		suite.recipes.On("Show", mock.Anything, "r1").Return(&outbound.ShowResult{}, nil).Once()
		v := suite.newView("r1", suite.factory.User())

		require.NoError(suite.T(), v.Mount(suite.ctx))

		state := v.State()
		assert.True(suite.T(), state.Recipe.IsZero())
		assert.False(suite.T(), state.ShowEditDelete)
		assert.Empty(suite.T(), state.Comments)
		assert.Equal(suite.T(), PhaseEmpty, state.Phase)
	})

	suite.Run("Failure_ShouldLeaveInitialStateAndNotRetry", func() {
		suite.SetupTest()
		boom := errors.New("connection refused")
		suite.recipes.On("Show", mock.Anything, "r1").Return(nil, boom).Once()
		v := suite.newView("r1", suite.factory.User())

		err := v.Mount(suite.ctx)
		assert.ErrorIs(suite.T(), err, boom)

		// Second mount is a no-op: Show was registered Once
		assert.NoError(suite.T(), v.Mount(suite.ctx))

		state := v.State()
		assert.True(suite.T(), state.Recipe.IsZero())
		assert.False(suite.T(), state.ShowEditDelete)
		assert.Equal(suite.T(), PhaseEmpty, state.Phase)
	})

	suite.Run("NotFound_ShouldMatchDomainError", func() {
		suite.SetupTest()
		notFound := apperrors.NewRecipeNotFoundError("r404").WithCause(recipe.ErrRecipeNotFound)
		suite.recipes.On("Show", mock.Anything, "r404").Return(nil, notFound).Once()
		v := suite.newView("r404", nil)

		err := v.Mount(suite.ctx)

		assert.ErrorIs(suite.T(), err, recipe.ErrRecipeNotFound)
		assert.Equal(suite.T(), PhaseEmpty, v.State().Phase)
	})

	suite.Run("EmptyID_ShouldNotRequest", func() {
		suite.SetupTest()
		v := suite.newView("", nil)

		assert.ErrorIs(suite.T(), v.Mount(suite.ctx), recipe.ErrEmptyRecipeID)
		suite.recipes.AssertNotCalled(suite.T(), "Show", mock.Anything, mock.Anything)
	})

	suite.Run("CommentsWithoutIDs_ShouldGetStableIDs", func() {
		suite.SetupTest()
		r := &recipe.Recipe{ID: "r1", Comments: []recipe.Comment{{User: "Ada", Body: "One"}, {User: "Bob", Body: "Two"}}}

		v := suite.mounted(nil, r)
		first := v.State().Comments

		require.Len(suite.T(), first, 2)
		assert.NotEmpty(suite.T(), first[0].ID)
		assert.NotEqual(suite.T(), first[0].ID, first[1].ID)
		assert.Equal(suite.T(), first, v.State().Comments)
	})
}

// TestPostComment covers optimistic comment insertion
func (suite *ViewTestSuite) TestPostComment() {
	suite.Run("Success_ShouldPrependAuthoredComment", func() {
		suite.SetupTest()
		ada := &user.CurrentUser{ID: "u-ada", Name: "Ada"}
		r := suite.factory.Recipe("owner-1", 2)
		v := suite.mounted(ada, r)

		v.ChangeDraft(recipe.DraftCommentField, "Tasty!")
		suite.comments.On("Create", mock.Anything, r.ID, recipe.Draft{"comment": "Tasty!"}).
			Return(&outbound.CreateCommentResult{Comment: &recipe.Comment{Body: "Tasty!"}}, nil).Once()

		require.NoError(suite.T(), v.PostComment(suite.ctx))

		state := v.State()
		require.Len(suite.T(), state.Comments, 3)
		assert.Equal(suite.T(), "Ada", state.Comments[0].User)
		assert.Equal(suite.T(), "Tasty!", state.Comments[0].Body)
		assert.NotEmpty(suite.T(), state.Comments[0].ID)
		assert.Equal(suite.T(), r.Comments, state.Comments[1:])

		// Draft is kept and the recipe's own comments are untouched
		assert.Equal(suite.T(), "Tasty!", state.Draft.Body())
		assert.Equal(suite.T(), r.Comments, state.Recipe.Comments)
	})

	suite.Run("ServerID_ShouldBeKept", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 0)
		v := suite.mounted(&user.CurrentUser{ID: "u1", Name: "Ada"}, r)

		suite.comments.On("Create", mock.Anything, r.ID, mock.Anything).
			Return(&outbound.CreateCommentResult{Comment: &recipe.Comment{ID: "srv-9", Body: "Hi", User: "ignored"}}, nil).Once()

		require.NoError(suite.T(), v.PostComment(suite.ctx))
		assert.Equal(suite.T(), recipe.Comment{ID: "srv-9", User: "Ada", Body: "Hi"}, v.State().Comments[0])
	})

	suite.Run("NoCommentPayload_ShouldLeaveComments", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 2)
		v := suite.mounted(suite.factory.User(), r)

		suite.comments.On("Create", mock.Anything, r.ID, mock.Anything).
			Return(&outbound.CreateCommentResult{}, nil).Once()

		require.NoError(suite.T(), v.PostComment(suite.ctx))
		assert.Equal(suite.T(), r.Comments, v.State().Comments)
	})

	suite.Run("Failure_ShouldLeaveComments", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 1)
		v := suite.mounted(suite.factory.User(), r)

		suite.comments.On("Create", mock.Anything, r.ID, mock.Anything).
			Return(nil, errors.New("timeout")).Once()

		assert.Error(suite.T(), v.PostComment(suite.ctx))
		assert.Equal(suite.T(), r.Comments, v.State().Comments)
	})

	suite.Run("Anonymous_ShouldNotRequest", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 1)
		v := suite.mounted(nil, r)

		assert.ErrorIs(suite.T(), v.PostComment(suite.ctx), ErrAnonymous)
		suite.comments.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	suite.Run("SecondPost_WhileInFlight_ShouldBeRejected", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner-1", 0)
		v := suite.mounted(suite.factory.User(), r)

		started := make(chan struct{})
		release := make(chan struct{})
		suite.comments.On("Create", mock.Anything, r.ID, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(&outbound.CreateCommentResult{Comment: &recipe.Comment{Body: "once"}}, nil).Once()

		var wg sync.WaitGroup
		wg.Add(1)
		var firstErr error
		go func() {
			defer wg.Done()
			firstErr = v.PostComment(suite.ctx)
		}()

		<-started
		assert.ErrorIs(suite.T(), v.PostComment(suite.ctx), ErrBusy)
		close(release)
		wg.Wait()

		require.NoError(suite.T(), firstErr)
		assert.Len(suite.T(), v.State().Comments, 1)
	})
}

// TestDelete covers confirmation, messages and the scheduled redirect
func (suite *ViewTestSuite) TestDelete() {
	suite.Run("Declined_ShouldNotRequest", func() {
		suite.SetupTest()
		owner := suite.factory.User()
		r := suite.factory.Recipe(owner.ID, 1)
		confirmer := &testutils.StaticConfirmer{Answer: false}
		suite.recipes.On("Show", mock.Anything, r.ID).Return(&outbound.ShowResult{Recipe: r}, nil).Once()
		v := suite.newView(r.ID, owner, WithConfirmer(confirmer))
		require.NoError(suite.T(), v.Mount(suite.ctx))
		before := v.State()

		require.NoError(suite.T(), v.RequestDelete(suite.ctx))

		assert.Equal(suite.T(), []string{"Are you sure you want to delete this recipe?"}, confirmer.Prompts())
		assert.Equal(suite.T(), before, v.State())
		assert.Empty(suite.T(), suite.scheduler.Timers())
		suite.recipes.AssertNotCalled(suite.T(), "Delete", mock.Anything, mock.Anything)
	})

	suite.Run("NoConfirmer_ShouldNotRequest", func() {
		suite.SetupTest()
		v := suite.newView("r1", nil)

		require.NoError(suite.T(), v.RequestDelete(suite.ctx))
		suite.recipes.AssertNotCalled(suite.T(), "Delete", mock.Anything, mock.Anything)
	})

	suite.Run("Accepted_Deleted_ShouldScheduleRedirect", func() {
		suite.SetupTest()
		owner := suite.factory.User()
		r := suite.factory.Recipe(owner.ID, 0)
		suite.recipes.On("Show", mock.Anything, r.ID).Return(&outbound.ShowResult{Recipe: r}, nil).Once()
		suite.recipes.On("Delete", mock.Anything, r.ID).
			Return(&outbound.DeleteResult{Deleted: true, Message: "Your Recipe has been deleted!"}, nil).Once()
		v := suite.newView(r.ID, owner, WithConfirmer(&testutils.StaticConfirmer{Answer: true}))
		require.NoError(suite.T(), v.Mount(suite.ctx))

		require.NoError(suite.T(), v.RequestDelete(suite.ctx))

		state := v.State()
		assert.Equal(suite.T(), "Your Recipe has been deleted!", state.Message)
		assert.Equal(suite.T(), PhaseDeleted, state.Phase)
		assert.Equal(suite.T(), &Redirect{Path: "/my-recipes", After: 2000 * time.Millisecond}, state.Redirect)

		timers := suite.scheduler.Timers()
		require.Len(suite.T(), timers, 1)
		assert.Equal(suite.T(), 2*time.Second, timers[0].Delay)
		assert.Empty(suite.T(), suite.navigator.Paths())

		timers[0].Fire()
		assert.Equal(suite.T(), []string{"/my-recipes"}, suite.navigator.Paths())
		assert.Equal(suite.T(), PhaseNavigated, v.State().Phase)
	})

	suite.Run("NotDeleted_ShouldShowMessageWithoutRedirect", func() {
		suite.SetupTest()
		suite.recipes.On("Delete", mock.Anything, "r1").
			Return(&outbound.DeleteResult{Deleted: false, Message: "You can only delete your own recipes"}, nil).Once()
		v := suite.newView("r1", suite.factory.User())

		require.NoError(suite.T(), v.Delete(suite.ctx))

		state := v.State()
		assert.Equal(suite.T(), "You can only delete your own recipes", state.Message)
		assert.Nil(suite.T(), state.Redirect)
		assert.Empty(suite.T(), suite.scheduler.Timers())
	})

	suite.Run("TransportError_ShouldKeepMessage", func() {
		suite.SetupTest()
		suite.recipes.On("Delete", mock.Anything, "r1").Return(nil, errors.New("EOF")).Once()
		v := suite.newView("r1", suite.factory.User())

		assert.Error(suite.T(), v.Delete(suite.ctx))
		assert.Empty(suite.T(), v.State().Message)
	})

	suite.Run("Close_ShouldStopPendingRedirect", func() {
		suite.SetupTest()
		suite.recipes.On("Delete", mock.Anything, "r1").
			Return(&outbound.DeleteResult{Deleted: true, Message: "Your Recipe has been deleted!"}, nil).Once()
		v := suite.newView("r1", suite.factory.User())
		require.NoError(suite.T(), v.Delete(suite.ctx))

		v.Close()

		timers := suite.scheduler.Timers()
		require.Len(suite.T(), timers, 1)
		assert.True(suite.T(), timers[0].Stopped())
		timers[0].Fire()
		assert.Empty(suite.T(), suite.navigator.Paths())
	})

	suite.Run("RequestWhileDeleting_ShouldNotPrompt", func() {
		suite.SetupTest()
		started := make(chan struct{})
		release := make(chan struct{})
		suite.recipes.On("Delete", mock.Anything, "r1").
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(&outbound.DeleteResult{Deleted: false, Message: "nope"}, nil).Once()
		confirmer := &testutils.StaticConfirmer{Answer: true}
		v := suite.newView("r1", suite.factory.User(), WithConfirmer(confirmer))

		errCh := make(chan error, 1)
		go func() { errCh <- v.Delete(suite.ctx) }()

		<-started
		assert.ErrorIs(suite.T(), v.RequestDelete(suite.ctx), ErrBusy)
		assert.Empty(suite.T(), confirmer.Prompts())

		close(release)
		require.NoError(suite.T(), <-errCh)
	})

	suite.Run("CloseWhilePrompting_ShouldCancelPrompt", func() {
		suite.SetupTest()
		prompted := make(chan struct{})
		confirmer := outbound.ConfirmerFunc(func(ctx context.Context, prompt string) bool {
			close(prompted)
			<-ctx.Done()
			return false
		})
		v := suite.newView("r1", suite.factory.User(), WithConfirmer(confirmer))

		errCh := make(chan error, 1)
		go func() { errCh <- v.RequestDelete(suite.ctx) }()

		<-prompted
		v.Close()

		select {
		case err := <-errCh:
			assert.ErrorIs(suite.T(), err, ErrClosed)
		case <-time.After(time.Second):
			suite.T().Fatal("prompt was not cancelled by Close")
		}
		suite.recipes.AssertNotCalled(suite.T(), "Delete", mock.Anything, mock.Anything)
	})

	suite.Run("CustomSettings_ShouldBeUsed", func() {
		suite.SetupTest()
		settings := DefaultSettings()
		settings.RedirectPath = "/mine"
		settings.RedirectDelay = 10 * time.Millisecond
		suite.recipes.On("Delete", mock.Anything, "r1").
			Return(&outbound.DeleteResult{Deleted: true, Message: "gone"}, nil).Once()
		v := suite.newView("r1", nil, WithSettings(settings))

		require.NoError(suite.T(), v.Delete(suite.ctx))

		assert.Equal(suite.T(), &Redirect{Path: "/mine", After: 10 * time.Millisecond}, v.State().Redirect)
		assert.Equal(suite.T(), 10*time.Millisecond, suite.scheduler.Timers()[0].Delay)
	})
}

// TestLifetime covers Close semantics
func (suite *ViewTestSuite) TestLifetime() {
	suite.Run("CloseDuringLoad_ShouldDropResult", func() {
		suite.SetupTest()
		started := make(chan struct{})
		suite.recipes.On("Show", mock.Anything, "r1").
			Run(func(args mock.Arguments) {
				close(started)
				<-args.Get(0).(context.Context).Done()
			}).
			Return(&outbound.ShowResult{Recipe: &recipe.Recipe{ID: "r1", Name: "Late"}}, nil).Once()
		v := suite.newView("r1", nil)

		errCh := make(chan error, 1)
		go func() { errCh <- v.Mount(suite.ctx) }()

		<-started
		v.Close()

		assert.ErrorIs(suite.T(), <-errCh, ErrClosed)
		assert.True(suite.T(), v.State().Recipe.IsZero())
		assert.Equal(suite.T(), PhaseClosed, v.State().Phase)
	})

	suite.Run("MutationsAfterClose_ShouldFail", func() {
		suite.SetupTest()
		v := suite.newView("r1", suite.factory.User())
		v.Close()
		v.Close()

		assert.ErrorIs(suite.T(), v.Mount(suite.ctx), ErrClosed)
		assert.ErrorIs(suite.T(), v.PostComment(suite.ctx), ErrClosed)
		assert.ErrorIs(suite.T(), v.Delete(suite.ctx), ErrClosed)
		assert.ErrorIs(suite.T(), v.RequestDelete(suite.ctx), ErrClosed)

		v.ChangeDraft(recipe.DraftCommentField, "ignored")
		assert.Empty(suite.T(), v.State().Draft.Body())
	})

	suite.Run("StateCopies_ShouldBeIndependent", func() {
		suite.SetupTest()
		r := suite.factory.Recipe("owner", 1)
		v := suite.mounted(nil, r)

		s := v.State()
		s.Comments[0].Body = "mutated"
		s.Recipe.Ingredients[0].Name = "mutated"

		assert.NotEqual(suite.T(), "mutated", v.State().Comments[0].Body)
		assert.NotEqual(suite.T(), "mutated", v.State().Recipe.Ingredients[0].Name)
	})
}

// TestDraft covers the draft accumulator wiring
func (suite *ViewTestSuite) TestDraft() {
	v := suite.newView("r1", nil)

	v.ChangeDraft("comment", "T")
	v.ChangeDraft("comment", "Ta")
	v.ChangeDraft("other", "x")

	assert.Equal(suite.T(), recipe.Draft{"comment": "Ta", "other": "x"}, v.State().Draft)
}

func TestViewTestSuite(t *testing.T) {
	suite.Run(t, new(ViewTestSuite))
}

func TestView_RealTimerNavigates(t *testing.T) {
	defer goleak.VerifyNone(t)

	recipes := testutils.NewMockRecipeService()
	recipes.On("Delete", mock.Anything, "r1").
		Return(&outbound.DeleteResult{Deleted: true, Message: "Your Recipe has been deleted!"}, nil).Once()

	navigated := make(chan string, 1)
	settings := DefaultSettings()
	settings.RedirectDelay = 5 * time.Millisecond

	v := New("r1", &user.CurrentUser{ID: "u1", Name: "Ada"}, recipes, testutils.NewMockCommentService(),
		WithSettings(settings),
		WithNavigator(outbound.NavigatorFunc(func(path string) { navigated <- path })),
	)
	defer v.Close()

	require.NoError(t, v.Delete(context.Background()))

	select {
	case path := <-navigated:
		assert.Equal(t, "/my-recipes", path)
	case <-time.After(time.Second):
		t.Fatal("navigation did not fire")
	}
}

func TestView_SpansServiceCalls(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	recipes := testutils.NewMockRecipeService()
	comments := testutils.NewMockCommentService()
	recipes.On("Show", mock.Anything, "r1").
		Return(&outbound.ShowResult{Recipe: &recipe.Recipe{ID: "r1", Owner: "u1"}}, nil).Once()
	comments.On("Create", mock.Anything, "r1", mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	recipes.On("Delete", mock.Anything, "r1").
		Return(&outbound.DeleteResult{Deleted: false, Message: "nope"}, nil).Once()

	v := New("r1", &user.CurrentUser{ID: "u1", Name: "Ada"}, recipes, comments,
		WithTracer(provider.Tracer("recipeview-test")),
	)
	defer v.Close()

	require.NoError(t, v.Mount(context.Background()))
	require.Error(t, v.PostComment(context.Background()))
	require.NoError(t, v.Delete(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "recipeview.Mount", spans[0].Name())
	assert.Equal(t, "recipeview.PostComment", spans[1].Name())
	assert.Equal(t, "recipeview.Delete", spans[2].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
	for _, span := range spans {
		assert.Contains(t, span.Attributes(), attribute.String("recipe.id", "r1"))
	}

	recipes.AssertExpectations(t)
	comments.AssertExpectations(t)
}
