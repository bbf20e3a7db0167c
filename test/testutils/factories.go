// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/brianvoe/gofakeit/v6"
)

// RecipeFactory provides methods to create test recipes
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a new recipe factory with seeded faker
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{
		faker: gofakeit.New(seed),
	}
}

// User creates a signed-in user
func (f *RecipeFactory) User() *user.CurrentUser {
	return &user.CurrentUser{
		ID:   f.faker.UUID(),
		Name: f.faker.Name(),
	}
}

// Comments creates n comments with server identities
func (f *RecipeFactory) Comments(n int) []recipe.Comment {
	comments := make([]recipe.Comment, 0, n)
	for i := 0; i < n; i++ {
		comments = append(comments, recipe.Comment{
			ID:   fmt.Sprintf("c-%d", i+1),
			User: f.faker.Name(),
			Body: f.faker.Sentence(6),
		})
	}
	return comments
}

// Recipe creates a recipe owned by owner with n comments
func (f *RecipeFactory) Recipe(owner string, comments int) *recipe.Recipe {
	ingredients := make([]recipe.Ingredient, 0, 3)
	for i := 0; i < 3; i++ {
		ingredients = append(ingredients, recipe.Ingredient{
			Name:     f.faker.Fruit(),
			Quantity: fmt.Sprintf("%d %s", f.faker.Number(1, 5), f.faker.RandomString([]string{"cup", "tbsp", "g"})),
		})
	}

	return &recipe.Recipe{
		ID:           f.faker.UUID(),
		Name:         f.faker.Sentence(3),
		Owner:        owner,
		Ingredients:  ingredients,
		Instructions: f.faker.Paragraph(1, 3, 8, " "),
		CreatedAt:    f.faker.Date().Format("2006-01-02T15:04:05Z"),
		Comments:     f.Comments(comments),
	}
}
