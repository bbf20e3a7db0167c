package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alchemorsel/recipeview/internal/application/recipeview"
	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

type loadedMsg struct{ err error }

type postedMsg struct{ err error }

type deletedMsg struct{ err error }

type promptMsg struct{ Prompt string }

// NavigatedMsg reports that the view navigated away
type NavigatedMsg struct{ Path string }

// Model is the bubbletea model of one mounted recipe view
type Model struct {
	ctx      context.Context
	view     *recipeview.View
	prompter *Prompter
	styles   Styles

	composer  textarea.Model
	composing bool
	deleting  bool
	prompt    string
	status    string
	err       error
	width     int

	navigatedTo string
	quitting    bool
}

// NewModel wraps a view. prompter must be the view's confirmer.
func NewModel(ctx context.Context, view *recipeview.View, prompter *Prompter, styles Styles) Model {
	ta := textarea.New()
	ta.Placeholder = "Add a comment"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(60)

	return Model{
		ctx:      ctx,
		view:     view,
		prompter: prompter,
		styles:   styles,
		composer: ta,
		width:    80,
	}
}

// NavigatedTo returns the route the view navigated to, if any
func (m Model) NavigatedTo() string {
	return m.navigatedTo
}

// Init mounts the view
func (m Model) Init() tea.Cmd {
	view, ctx := m.view, m.ctx
	return func() tea.Msg {
		return loadedMsg{err: view.Mount(ctx)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.composer.SetWidth(min(msg.Width-4, 80))
		return m, nil

	case loadedMsg:
		m.setErr(msg.err)
		return m, nil

	case postedMsg:
		m.setErr(msg.err)
		if msg.err == nil {
			m.status = "Comment posted"
		}
		return m, nil

	case promptMsg:
		m.prompt = msg.Prompt
		return m, nil

	case deletedMsg:
		m.deleting = false
		m.prompt = ""
		m.status = ""
		m.setErr(msg.err)
		return m, nil

	case NavigatedMsg:
		m.navigatedTo = msg.Path
		return m.quit()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.composing {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	if m.prompt != "" {
		switch msg.String() {
		case "y", "Y":
			m.prompter.answer(true)
			m.status = "Deleting..."
		case "n", "N", "esc":
			m.prompter.answer(false)
			m.prompt = ""
		}
		return m, nil
	}

	if m.composing {
		switch msg.Type {
		case tea.KeyEsc:
			m.composing = false
			m.composer.Blur()
			return m, nil
		case tea.KeyCtrlS:
			return m, m.postCmd()
		}

		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		m.view.ChangeDraft(recipe.DraftCommentField, m.composer.Value())
		return m, cmd
	}

	page := m.view.Page()
	switch msg.String() {
	case "q":
		return m.quit()
	case "tab":
		if page.ShowComposer {
			m.composing = true
			return m, m.composer.Focus()
		}
		m.status = "Sign in to comment"
	case "d":
		if page.ShowOwnerActions && !m.deleting {
			m.deleting = true
			return m, m.deleteCmd()
		}
	case "e":
		if page.ShowOwnerActions {
			m.status = "Edit at " + page.EditPath
		}
	}
	return m, nil
}

func (m Model) postCmd() tea.Cmd {
	view, ctx := m.view, m.ctx
	return func() tea.Msg {
		return postedMsg{err: view.PostComment(ctx)}
	}
}

// deleteCmd starts the confirmed delete and listens for its prompt
func (m Model) deleteCmd() tea.Cmd {
	view, ctx := m.view, m.ctx
	return tea.Batch(
		func() tea.Msg {
			return deletedMsg{err: view.RequestDelete(ctx)}
		},
		m.prompter.wait(ctx),
	)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.view.Close()
	return m, tea.Quit
}

func (m *Model) setErr(err error) {
	m.err = nil
	if err == nil {
		return
	}
	m.status = ""
	switch {
	case errors.Is(err, recipeview.ErrBusy):
		m.err = errors.New("still working on the previous request")
	case errors.Is(err, recipeview.ErrClosed):
	default:
		m.err = err
	}
}

// View renders the model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	page := m.view.Page()
	var sb strings.Builder

	if page.Phase == recipeview.PhaseLoading {
		sb.WriteString(m.styles.Muted.Render("Loading recipe..."))
		sb.WriteString("\n")
		return sb.String()
	}

	if page.ShowBanner {
		sb.WriteString(m.styles.Banner.Render(page.Banner))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.styles.Title.Render(page.Name))
	if page.ShowOwnerActions {
		sb.WriteString("  ")
		sb.WriteString(m.styles.Actions.Render("[e] edit  [d] delete"))
	}
	sb.WriteString("\n")
	if page.CreatedAt != "" {
		sb.WriteString(m.styles.Muted.Render(page.CreatedAt))
		sb.WriteString("\n")
	}
	if page.Phase == recipeview.PhaseEmpty {
		sb.WriteString(m.styles.Muted.Render("This recipe could not be loaded."))
		sb.WriteString("\n")
	}

	sb.WriteString(m.styles.Heading.Render("Ingredients"))
	sb.WriteString("\n")
	for _, line := range recipeview.IngredientLines(page.Ingredients) {
		sb.WriteString("  • " + line + "\n")
	}

	sb.WriteString(m.styles.Heading.Render("Instructions"))
	sb.WriteString("\n")
	sb.WriteString(page.Instructions)
	sb.WriteString("\n")

	sb.WriteString(m.styles.Heading.Render("Comments"))
	sb.WriteString("\n")
	if page.ShowComposer {
		sb.WriteString(m.composer.View())
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.styles.Muted.Render("Sign in to comment."))
		sb.WriteString("\n")
	}
	for _, entry := range page.Feed {
		sb.WriteString(fmt.Sprintf("%s %s: %s\n",
			m.styles.Label.Render(fmt.Sprintf("#%d", entry.Position)),
			m.styles.Author.Render(entry.User),
			entry.Body,
		))
	}

	if m.prompt != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Prompt.Render(m.prompt + " (y/n)"))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Error.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	} else if m.status != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render(m.status))
		sb.WriteString("\n")
	}

	sb.WriteString(m.styles.Footer.Render(m.help(page)))
	return sb.String()
}

func (m Model) help(page recipeview.Page) string {
	if m.composing {
		return "ctrl+s post • esc done • ctrl+c quit"
	}
	parts := []string{}
	if page.ShowComposer {
		parts = append(parts, "tab comment")
	}
	if page.ShowOwnerActions {
		parts = append(parts, "e edit", "d delete")
	}
	parts = append(parts, "q quit")
	return strings.Join(parts, " • ")
}
