// Package recipeview implements the recipe full view: it loads one recipe with
// its comments, exposes the state a front end renders, and applies the user's
// mutations (comment drafts, posting comments, deleting the recipe).
//
// A View is one mounted instance. It owns a lifetime context; Close cancels
// outstanding requests and any scheduled navigation, and results arriving
// after Close are dropped.
package recipeview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/alchemorsel/recipeview/internal/ports/inbound"
	"github.com/alchemorsel/recipeview/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeview/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Errors returned by view operations. Compare with errors.Is.
var (
	ErrClosed    = apperrors.NewViewClosedError()
	ErrBusy      = apperrors.NewBusyError("view")
	ErrAnonymous = apperrors.NewUnauthorizedError("Sign in to post a comment")
)

// Phase is the lifecycle position of a view instance
type Phase int

// View phases
const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseEmpty
	PhaseDeleted
	PhaseNavigated
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseEmpty:
		return "empty"
	case PhaseDeleted:
		return "deleted"
	case PhaseNavigated:
		return "navigated"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Redirect is a navigation scheduled by the view
type Redirect struct {
	Path  string
	After time.Duration
}

// State is the locally owned view state
type State struct {
	Recipe         recipe.Recipe
	ShowEditDelete bool
	Message        string
	Draft          recipe.Draft
	// Comments starts as the loaded recipe's comments and diverges from
	// Recipe.Comments as comments are posted (newest first).
	Comments []recipe.Comment
	Phase    Phase
	Redirect *Redirect
}

func (s State) clone() State {
	out := s
	out.Recipe = s.Recipe.Clone()
	out.Draft = s.Draft.Clone()
	if s.Comments != nil {
		out.Comments = append([]recipe.Comment(nil), s.Comments...)
	}
	if s.Redirect != nil {
		r := *s.Redirect
		out.Redirect = &r
	}
	return out
}

// Settings holds the fixed texts, routes and delays the view uses
type Settings struct {
	DeletedMessage   string
	RedirectPath     string
	RedirectDelay    time.Duration
	ConfirmPrompt    string
	PlaceholderImage string
	EditPathFormat   string
}

// DefaultSettings returns the stock view settings
func DefaultSettings() Settings {
	return Settings{
		DeletedMessage:   "Your Recipe has been deleted!",
		RedirectPath:     "/my-recipes",
		RedirectDelay:    2 * time.Second,
		ConfirmPrompt:    "Are you sure you want to delete this recipe?",
		PlaceholderImage: "https://mui.com/static/images/cards/paella.jpg",
		EditPathFormat:   "/recipes/%s/edit",
	}
}

// Stopper cancels a scheduled function
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f to run after d
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Metrics receives view outcomes
type Metrics interface {
	ObserveLoad(outcome string)
	ObserveMutation(kind, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveLoad(string)             {}
func (nopMetrics) ObserveMutation(string, string) {}

// Option configures a View
type Option func(*View)

// WithLogger sets the view logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithNavigator sets the navigator used for the post-delete redirect
func WithNavigator(n outbound.Navigator) Option {
	return func(v *View) { v.navigator = n }
}

// WithConfirmer sets the confirmation prompt used by RequestDelete
func WithConfirmer(c outbound.Confirmer) Option {
	return func(v *View) { v.confirmer = c }
}

// WithAfterFunc replaces time.AfterFunc for scheduling navigation
func WithAfterFunc(f AfterFunc) Option {
	return func(v *View) {
		if f != nil {
			v.afterFunc = f
		}
	}
}

// WithSettings overrides the default settings
func WithSettings(s Settings) Option {
	return func(v *View) { v.settings = s }
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(v *View) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithTracer sets the tracer that spans each service call
func WithTracer(t trace.Tracer) Option {
	return func(v *View) {
		if t != nil {
			v.tracer = t
		}
	}
}

// View is one mounted instance of the recipe full view
type View struct {
	id        string
	current   *user.CurrentUser
	recipes   outbound.RecipeService
	comments  outbound.CommentService
	navigator outbound.Navigator
	confirmer outbound.Confirmer
	afterFunc AfterFunc
	settings  Settings
	metrics   Metrics
	tracer    trace.Tracer
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	mounted  bool
	posting  bool
	deleting bool
	timer    Stopper
}

var _ inbound.RecipeView = (*View)(nil)

// New creates a view for the recipe id. current is nil for anonymous visitors.
func New(
	id string,
	current *user.CurrentUser,
	recipes outbound.RecipeService,
	comments outbound.CommentService,
	opts ...Option,
) *View {
	ctx, cancel := context.WithCancel(context.Background())

	v := &View{
		id:        id,
		current:   current,
		recipes:   recipes,
		comments:  comments,
		afterFunc: realAfterFunc,
		settings:  DefaultSettings(),
		metrics:   nopMetrics{},
		tracer:    noop.NewTracerProvider().Tracer(""),
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Phase: PhaseLoading},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.Named("recipe-view").With(zap.String("recipe_id", id))

	return v
}

// ID returns the recipe identifier the view was mounted for
func (v *View) ID() string {
	return v.id
}

// CurrentUser returns the signed-in user, nil when anonymous
func (v *View) CurrentUser() *user.CurrentUser {
	return v.current
}

// Settings returns the view settings
func (v *View) Settings() Settings {
	return v.settings
}

// State returns a copy of the current view state
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.clone()
}

// Page renders the current state
func (v *View) Page() Page {
	return Render(v.State(), v.current, v.settings)
}

// Close disposes the view. Outstanding requests are cancelled, a scheduled
// navigation is stopped and later results are ignored. Close is idempotent.
func (v *View) Close() {
	v.mu.Lock()
	if v.state.Phase == PhaseClosed {
		v.mu.Unlock()
		return
	}
	v.state.Phase = PhaseClosed
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.mu.Unlock()

	v.cancel()
	v.logger.Debug("View closed")
}

// requestContext derives a request context from ctx that is also cancelled
// when the view closes.
func (v *View) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// startSpan opens the span for one service call
func (v *View) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return v.tracer.Start(ctx, "recipeview."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("recipe.id", v.id)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (v *View) closedLocked() bool {
	return v.state.Phase == PhaseClosed
}
