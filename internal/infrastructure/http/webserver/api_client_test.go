package webserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	apperrors "github.com/alchemorsel/recipeview/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedCall struct {
	operation string
	status    int
}

type recordingObserver struct {
	calls []recordedCall
}

func (o *recordingObserver) APIRequest(operation string, status int, _ time.Duration) {
	o.calls = append(o.calls, recordedCall{operation: operation, status: status})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*APIClient, *recordingObserver) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 2 * time.Second

	observer := &recordingObserver{}
	return NewAPIClient(cfg, zap.NewNop(), observer), observer
}

func TestAPIClient_Show(t *testing.T) {
	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/recipes/r1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"recipe":{"id":"r1","name":"Paella","owner":"u1",
			"ingredients":[{"name":"rice","quantity":"2 cups"}],
			"instructions":"Cook","created_at":"2024-03-01T10:00:00.000Z",
			"comments":[{"id":"c1","user":"Bob","body":"Yum"}]}}`)
	})

	res, err := client.ForToken("tok").Show(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, res.Recipe)

	assert.Equal(t, "Paella", res.Recipe.Name)
	assert.Equal(t, "u1", res.Recipe.Owner)
	assert.Equal(t, "2024-03-01T10:00:00.000Z", res.Recipe.CreatedAt)
	assert.Equal(t, []recipe.Ingredient{{Name: "rice", Quantity: "2 cups"}}, res.Recipe.Ingredients)
	require.Len(t, res.Recipe.Comments, 1)
	assert.Equal(t, "Bob", res.Recipe.Comments[0].User)
	assert.Equal(t, []recordedCall{{"show", http.StatusOK}}, observer.calls)
}

func TestAPIClient_ShowWithoutRecipe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	res, err := client.Show(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, res.Recipe)
}

func TestAPIClient_ShowErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   apperrors.ErrorCode
	}{
		{"not found", http.StatusNotFound, apperrors.CodeRecipeNotFound},
		{"server error", http.StatusInternalServerError, apperrors.CodeExternalServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.Show(context.Background(), "r1")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

func TestAPIClient_NotFoundMatchesDomainError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Show(context.Background(), "r404")
	assert.ErrorIs(t, err, recipe.ErrRecipeNotFound)

	_, err = client.Create(context.Background(), "r404", recipe.Draft{"comment": "Hi"})
	assert.ErrorIs(t, err, recipe.ErrRecipeNotFound)
}

func TestAPIClient_Delete(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		deleted bool
		message string
	}{
		{"explicit success", http.StatusOK, `{"message":"Gone","success":true}`, true, "Gone"},
		{"explicit failure", http.StatusOK, `{"message":"Your Recipe has been deleted!","success":false}`, false, "Your Recipe has been deleted!"},
		{"message fallback match", http.StatusOK, `{"message":"Your Recipe has been deleted!"}`, true, "Your Recipe has been deleted!"},
		{"message fallback mismatch", http.StatusOK, `{"message":"Your recipe has been deleted!"}`, false, "Your recipe has been deleted!"},
		{"error status keeps message", http.StatusForbidden, `{"message":"Not your recipe"}`, false, "Not your recipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.Delete(context.Background(), "r1")
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, res.Deleted)
			assert.Equal(t, tt.message, res.Message)
		})
	}

	t.Run("error status without message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Delete(context.Background(), "r1")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeExternalServiceError, apperrors.GetCode(err))
	})
}

func TestAPIClient_CreateComment(t *testing.T) {
	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recipes/r1/comments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Comment map[string]string `json:"comment"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Tasty!", body.Comment["comment"])

		_, _ = io.WriteString(w, `{"comment":{"id":"c9","body":"Tasty!"}}`)
	})

	draft := recipe.Draft{}.Set(recipe.DraftCommentField, "Tasty!")
	res, err := client.Create(context.Background(), "r1", draft)
	require.NoError(t, err)
	require.NotNil(t, res.Comment)

	assert.Equal(t, "c9", res.Comment.ID)
	assert.Equal(t, "Tasty!", res.Comment.Body)
	assert.Equal(t, "create_comment", observer.calls[0].operation)
}

func TestAPIClient_CreateCommentWithoutPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"queued"}`)
	})

	res, err := client.Create(context.Background(), "r1", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Comment)
}

func TestAPIClient_Login(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"error":"bad credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"access_token":"tok","user":{"id":"u1","name":"Ada"}}`)
	})

	resp, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, "Ada", resp.User.Name)

	_, err = client.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.GetCode(err))
}

func TestAPIClient_TransportFailure(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.API.Timeout = 200 * time.Millisecond

	observer := &recordingObserver{}
	client := NewAPIClient(cfg, zap.NewNop(), observer)

	_, err = client.Show(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeExternalServiceError, apperrors.GetCode(err))
	assert.Equal(t, 0, observer.calls[0].status)
}
