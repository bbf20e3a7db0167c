package recipeview

import (
	"fmt"
	"strings"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/domain/user"
)

// Page is everything a front end needs to draw the view
type Page struct {
	RecipeID string

	ShowBanner bool
	Banner     string

	ShowOwnerActions bool
	EditPath         string

	Name         string
	Ingredients  []recipe.Ingredient
	Image        string
	Instructions string
	CreatedAt    string

	ShowComposer bool
	DraftBody    string

	Feed []FeedEntry

	Phase    Phase
	Redirect *Redirect
}

// FeedEntry is one block of the comment feed
type FeedEntry struct {
	// Key is the comment's stable identity
	Key string
	// Position is the 1-based place in the current feed, recomputed per render
	Position int
	User     string
	Body     string
}

// Render derives the page from state. It has no side effects.
func Render(state State, current *user.CurrentUser, settings Settings) Page {
	page := Page{
		RecipeID:         state.Recipe.ID,
		ShowBanner:       state.Message != "",
		Banner:           state.Message,
		ShowOwnerActions: state.ShowEditDelete,
		Name:             state.Recipe.Name,
		Ingredients:      state.Recipe.Ingredients,
		Image:            settings.PlaceholderImage,
		Instructions:     state.Recipe.Instructions,
		CreatedAt:        state.Recipe.CreatedAt,
		ShowComposer:     !current.IsAnonymous(),
		DraftBody:        state.Draft.Body(),
		Phase:            state.Phase,
		Redirect:         state.Redirect,
	}

	if page.ShowOwnerActions && settings.EditPathFormat != "" {
		page.EditPath = fmt.Sprintf(settings.EditPathFormat, state.Recipe.ID)
	}

	page.Feed = make([]FeedEntry, 0, len(state.Comments))
	for i, c := range state.Comments {
		page.Feed = append(page.Feed, FeedEntry{
			Key:      c.ID,
			Position: i + 1,
			User:     c.User,
			Body:     c.Body,
		})
	}

	return page
}

// IngredientLines formats an ingredient list one line per ingredient,
// quantity first when present.
func IngredientLines(ingredients []recipe.Ingredient) []string {
	lines := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		line := strings.TrimSpace(strings.Join([]string{ing.Quantity, ing.Name}, " "))
		lines = append(lines, line)
	}
	return lines
}
