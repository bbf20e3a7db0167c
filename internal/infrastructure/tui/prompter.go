package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompter answers the view's delete confirmation from inside the program.
// Confirm hands the prompt to the model and blocks until the user answers.
type Prompter struct {
	prompts chan string
	answers chan bool
}

// NewPrompter creates a prompter
func NewPrompter() *Prompter {
	return &Prompter{
		prompts: make(chan string),
		answers: make(chan bool, 1),
	}
}

// Confirm implements outbound.Confirmer
func (p *Prompter) Confirm(ctx context.Context, prompt string) bool {
	select {
	case p.prompts <- prompt:
	case <-ctx.Done():
		return false
	}

	select {
	case answer := <-p.answers:
		return answer
	case <-ctx.Done():
		return false
	}
}

// answer delivers the user's reply to a pending Confirm
func (p *Prompter) answer(yes bool) {
	select {
	case p.answers <- yes:
	default:
	}
}

// wait returns a command that yields the next prompt
func (p *Prompter) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case prompt := <-p.prompts:
			return promptMsg{Prompt: prompt}
		case <-ctx.Done():
			return nil
		}
	}
}

// ProgramNavigator turns view navigations into program messages
type ProgramNavigator struct {
	program *tea.Program
}

// Attach binds the navigator to a running program
func (n *ProgramNavigator) Attach(p *tea.Program) {
	n.program = p
}

// Navigate implements outbound.Navigator
func (n *ProgramNavigator) Navigate(path string) {
	if n.program != nil {
		n.program.Send(NavigatedMsg{Path: path})
	}
}
