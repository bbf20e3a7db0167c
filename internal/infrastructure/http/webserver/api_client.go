// Package webserver provides API client for backend communication
package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/recipe"
	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/alchemorsel/recipeview/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipeview/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const apiServiceName = "recipe-api"

// RequestObserver receives per-call API metrics
type RequestObserver interface {
	APIRequest(operation string, status int, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) APIRequest(string, int, time.Duration) {}

// APIClient handles communication with the backend API
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	logger         *zap.Logger
	metrics        RequestObserver
	deletedMessage string
	token          string
}

var (
	_ outbound.RecipeService  = (*APIClient)(nil)
	_ outbound.CommentService = (*APIClient)(nil)
)

// NewAPIClient creates a new API client instance
func NewAPIClient(cfg *config.Config, logger *zap.Logger, metrics RequestObserver) *APIClient {
	if metrics == nil {
		metrics = nopObserver{}
	}

	return &APIClient{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:         logger.Named("api-client"),
		metrics:        metrics,
		deletedMessage: cfg.View.DeletedMessage,
	}
}

// ForToken returns a client that authenticates as the bearer of token
func (c *APIClient) ForToken(token string) *APIClient {
	clone := *c
	clone.token = token
	return &clone
}

// BaseURL returns the API root
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Authentication

// LoginRequest represents login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success     bool         `json:"success"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
	Error       string       `json:"error,omitempty"`
}

// UserResponse represents user data in API responses
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Login authenticates a user with the API
func (c *APIClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{
		Email:    email,
		Password: password,
	}

	var resp LoginResponse
	status, err := c.send(ctx, "login", http.MethodPost, "/api/v1/auth/login", req, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apperrors.NewUnauthorizedError("Invalid credentials")
	}

	if !resp.Success {
		return nil, fmt.Errorf("login failed: %s", resp.Error)
	}

	return &resp, nil
}

// Recipes

type showResponse struct {
	Recipe *recipe.Recipe `json:"recipe"`
}

// Show fetches a single recipe with its comments
func (c *APIClient) Show(ctx context.Context, id string) (*outbound.ShowResult, error) {
	var resp showResponse
	status, err := c.send(ctx, "show", http.MethodGet, "/api/v1/recipes/"+id, nil, &resp)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(apiServiceName, err)
	}

	switch {
	case status == http.StatusNotFound:
		return nil, recipeNotFound(id)
	case status >= 400:
		return nil, apperrors.NewExternalServiceError(apiServiceName, fmt.Errorf("status %d", status))
	}

	return &outbound.ShowResult{Recipe: resp.Recipe}, nil
}

type deleteResponse struct {
	Message string `json:"message"`
	Success *bool  `json:"success"`
}

// Delete deletes a recipe. The API message is returned on any status so the
// caller can show it. When the API omits its success flag, success means
// the message equals the configured deleted message exactly.
func (c *APIClient) Delete(ctx context.Context, id string) (*outbound.DeleteResult, error) {
	var resp deleteResponse
	status, err := c.send(ctx, "delete", http.MethodDelete, "/api/v1/recipes/"+id, nil, &resp)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(apiServiceName, err)
	}
	if status >= 400 && resp.Message == "" {
		return nil, apperrors.NewExternalServiceError(apiServiceName, fmt.Errorf("status %d", status))
	}

	deleted := resp.Message == c.deletedMessage
	if resp.Success != nil {
		deleted = *resp.Success
	}
	if status >= 400 {
		deleted = false
	}

	return &outbound.DeleteResult{Deleted: deleted, Message: resp.Message}, nil
}

// Comments

type commentRequest struct {
	Comment recipe.Draft `json:"comment"`
}

type commentResponse struct {
	Comment *recipe.Comment `json:"comment"`
}

// Create posts a comment built from the draft
func (c *APIClient) Create(ctx context.Context, recipeID string, draft recipe.Draft) (*outbound.CreateCommentResult, error) {
	if draft == nil {
		draft = recipe.Draft{}
	}

	var resp commentResponse
	path := "/api/v1/recipes/" + recipeID + "/comments"
	status, err := c.send(ctx, "create_comment", http.MethodPost, path, commentRequest{Comment: draft}, &resp)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(apiServiceName, err)
	}

	switch {
	case status == http.StatusNotFound:
		return nil, recipeNotFound(recipeID)
	case status >= 400:
		return nil, apperrors.NewExternalServiceError(apiServiceName, fmt.Errorf("status %d", status))
	}

	return &outbound.CreateCommentResult{Comment: resp.Comment}, nil
}

// Helper methods

func recipeNotFound(id string) error {
	return apperrors.NewRecipeNotFoundError(id).WithCause(recipe.ErrRecipeNotFound)
}

var errUndecodable = errors.New("undecodable response body")

// send performs the request and decodes a JSON body into response when one
// is present. The HTTP status is returned alongside; statuses >= 400 are not
// errors at this level.
func (c *APIClient) send(ctx context.Context, operation, method, path string, body, response interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("API request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.APIRequest(operation, 0, time.Since(start))
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.APIRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("API error response",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
	}

	if response == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, response); err != nil {
		if resp.StatusCode >= 400 {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("%w: %v", errUndecodable, err)
	}

	return resp.StatusCode, nil
}
