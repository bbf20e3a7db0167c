// Package webserver provides session management for the web frontend
package webserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when a session id is unknown or expired
var ErrSessionNotFound = errors.New("session not found")

// Session represents a user session
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	AccessToken string    `json:"access_token"`
	CSRFToken   string    `json:"csrf_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CurrentUser returns the signed-in user, nil for anonymous sessions
func (session *Session) CurrentUser() *user.CurrentUser {
	if session == nil || session.UserID == "" {
		return nil
	}
	return &user.CurrentUser{ID: session.UserID, Name: session.UserName}
}

// SignIn attaches a user to the session
func (session *Session) SignIn(id, name, token string) {
	session.UserID = id
	session.UserName = name
	session.AccessToken = token
}

// Expired reports whether the session is past its expiry
func (session *Session) Expired(now time.Time) bool {
	return now.After(session.ExpiresAt)
}

// SessionStore persists sessions by id
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewSessionStore returns the store selected by session.store
func NewSessionStore(cfg *config.Config, logger *zap.Logger) (SessionStore, error) {
	switch cfg.Session.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.Database,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		return NewRedisSessionStore(client, cfg.Redis.KeyPrefix, logger), nil
	case "memory", "":
		return NewMemorySessionStore(cfg.Session.CleanupInterval, logger), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewMemorySessionStore creates a memory store that drops expired sessions
// every cleanupInterval
func NewMemorySessionStore(cleanupInterval time.Duration, logger *zap.Logger) *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*Session),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	go store.cleanupExpired(cleanupInterval)

	return store
}

// Get returns a copy of the session
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}
	if session.Expired(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}

	out := *session
	return &out, nil
}

// Save stores a copy of the session
func (s *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	stored := *session

	s.mu.Lock()
	s.sessions[session.ID] = &stored
	s.mu.Unlock()
	return nil
}

// Delete removes a session
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the cleanup goroutine
func (s *MemorySessionStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// cleanupExpired removes expired sessions periodically
func (s *MemorySessionStore) cleanupExpired(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired(time.Now())
		}
	}
}

func (s *MemorySessionStore) removeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
			s.logger.Debug("Cleaned up expired session", zap.String("session_id", id))
		}
	}
	return removed
}

// RedisSessionStore keeps sessions in Redis as JSON values whose TTL matches
// the session lifetime
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisSessionStore creates a Redis backed store
func NewRedisSessionStore(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Client exposes the Redis client for health checks
func (s *RedisSessionStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

// Get loads a session
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Save stores a session until it expires
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// SessionManager binds sessions to the session cookie
type SessionManager struct {
	store      SessionStore
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *zap.Logger
}

// NewSessionManager creates a session manager on top of store
func NewSessionManager(store SessionStore, cfg *config.Config, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		store:      store,
		cookieName: cfg.Session.CookieName,
		ttl:        cfg.Session.TTL,
		secure:     cfg.Session.SecureCookie,
		logger:     logger,
	}
}

// Load returns the request's session, starting a new one if the cookie is
// missing or the session expired
func (m *SessionManager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		session, err := m.store.Get(r.Context(), cookie.Value)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("Failed to load session", zap.Error(err))
		}
	}

	session := &Session{
		ID:        generateToken(),
		CSRFToken: generateToken(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.Save(w, r, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Save persists the session and refreshes the cookie
func (m *SessionManager) Save(w http.ResponseWriter, r *http.Request, session *Session) error {
	if err := m.store.Save(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
	return nil
}

// Renew moves the session to a fresh ID and CSRF token, saves it and removes
// the old ID from the store. Call it whenever the session's user changes.
func (m *SessionManager) Renew(w http.ResponseWriter, r *http.Request, session *Session) error {
	oldID := session.ID
	session.ID = generateToken()
	session.CSRFToken = generateToken()

	if err := m.Save(w, r, session); err != nil {
		return err
	}
	if err := m.store.Delete(r.Context(), oldID); err != nil {
		m.logger.Warn("Failed to delete replaced session", zap.Error(err))
	}
	return nil
}

// Destroy deletes the session and expires the cookie
func (m *SessionManager) Destroy(w http.ResponseWriter, r *http.Request, session *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return m.store.Delete(r.Context(), session.ID)
}

// Store returns the underlying store
func (m *SessionManager) Store() SessionStore {
	return m.store
}

// generateToken generates a random URL-safe token
func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
