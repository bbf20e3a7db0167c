// Package recipe contains the recipe and comment models shown by the full view.
// Values mirror the payloads of the remote recipe service.
package recipe

import (
	"encoding/json"

	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/google/uuid"
)

// Recipe is a recipe as returned by the recipe service
type Recipe struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Owner        string       `json:"owner"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions string       `json:"instructions"`
	// CreatedAt is kept verbatim; the view never reformats it.
	CreatedAt string    `json:"created_at"`
	Comments  []Comment `json:"comments"`
}

// IsZero reports whether the recipe is the initial empty value
func (r Recipe) IsZero() bool {
	return r.ID == "" && r.Name == "" && r.Owner == "" &&
		len(r.Ingredients) == 0 && r.Instructions == "" &&
		r.CreatedAt == "" && len(r.Comments) == 0
}

// OwnedBy reports whether the given user owns the recipe.
// Anonymous visitors never own anything.
func (r Recipe) OwnedBy(u *user.CurrentUser) bool {
	if u == nil || u.ID == "" {
		return false
	}
	return u.ID == r.Owner
}

// Clone returns a deep copy of the recipe
func (r Recipe) Clone() Recipe {
	out := r
	if r.Ingredients != nil {
		out.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	}
	if r.Comments != nil {
		out.Comments = append([]Comment(nil), r.Comments...)
	}
	return out
}

// Ingredient is one line of a recipe's ingredient list
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// UnmarshalJSON accepts "amount" as an alias for "quantity"
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string          `json:"name"`
		Quantity json.RawMessage `json:"quantity"`
		Amount   json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	i.Name = raw.Name
	qty := raw.Quantity
	if len(qty) == 0 {
		qty = raw.Amount
	}
	i.Quantity = scalarText(qty)
	return nil
}

// scalarText renders a JSON string or number as plain text
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Comment is a single entry of a recipe's comment feed
type Comment struct {
	ID   string `json:"id,omitempty"`
	User string `json:"user"`
	Body string `json:"body"`
}

// NewComment creates a comment with a fresh local identity
func NewComment(userName, body string) Comment {
	return Comment{
		ID:   uuid.NewString(),
		User: userName,
		Body: body,
	}
}

// EnsureID assigns a local identity when the server did not supply one
func (c Comment) EnsureID() Comment {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return c
}
