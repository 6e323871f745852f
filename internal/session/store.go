// Package session owns the authenticated-identity lifecycle of the client:
// login (by credential or phone only), signup, logout and restoration of a
// persisted session at process start.
//
// The session is persisted as two key-value entries, the bearer token under
// api.TokenKey and the cached identity under UserKey. They are written and
// cleared together. A write always reaches the key-value store before the
// in-memory identity is updated, and a failed second write rolls back the
// first, so the in-memory identity never runs ahead of durable state.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/event"
	"github.com/Iron-Ham/git2doc/internal/logging"
	"github.com/Iron-Ham/git2doc/internal/storage"
)

// UserKey is the key-value store entry holding the cached identity.
const UserKey = "user"

// Fallback reasons used when the service gives none.
const (
	MsgLoginFailed          = "Login failed. Please check your credentials."
	MsgPhoneNotRegistered   = "Phone number not registered"
	MsgEmailRegistered      = "Email already registered"
	MsgPhoneRegistered      = "Phone number already registered"
	msgMissingAccessToken   = "missing access token"
	msgCredentialIsRequired = "email or phone number is required"
)

// Authenticator is the subset of the service API the session needs.
// *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, in api.RegisterRequest) (*api.AuthResponse, error)
	Me(ctx context.Context) (*api.User, error)
	Logout(ctx context.Context) error
}

// Store is the SessionStore. It is safe for concurrent use.
type Store struct {
	client Authenticator
	kv     storage.Store
	bus    *event.Bus
	logger *logging.Logger

	// commitMu serializes every key-value write together with the
	// in-memory update that follows it.
	commitMu sync.Mutex

	mu       sync.RWMutex
	identity *Identity
	loading  bool
	closed   bool

	restoreOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithBus sets the bus that receives session events.
func WithBus(bus *event.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store. The store starts in the loading state until Restore
// completes.
func New(client Authenticator, kv storage.Store, opts ...Option) *Store {
	s := &Store{
		client:  client,
		kv:      kv,
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("session")
	return s
}

// Identity returns a copy of the current identity, or nil when logged out.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	return s.identity.clone()
}

// IsAuthenticated reports whether an identity is loaded.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// IsLoading reports whether startup restoration is still pending.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Close tears the store down. Operations that complete afterwards discard
// their results instead of persisting or publishing them.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// -----------------------------------------------------------------------------
// Restore
// -----------------------------------------------------------------------------

// Restore loads a persisted session and validates it against the service.
// The identity comes from the service, never from the cache. Any failure
// purges both persisted entries. A login or logout that commits while the
// check is in flight wins and restore writes nothing. Only the first call does work; it always
// ends the loading state and publishes a single SessionReadyEvent.
func (s *Store) Restore(ctx context.Context) *Identity {
	s.restoreOnce.Do(func() {
		restored := s.restore(ctx)

		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()

		if restored != nil {
			s.publish(event.NewSessionChangedEvent(true, restored.ID, event.ReasonRestored))
		}
		var userID int64
		current := s.Identity()
		if current != nil {
			userID = current.ID
		}
		s.publish(event.NewSessionReadyEvent(current != nil, userID))
	})
	return s.Identity()
}

func (s *Store) restore(ctx context.Context) *Identity {
	token, tokenErr := s.kv.Load(ctx, api.TokenKey)
	cached, userErr := s.kv.Load(ctx, UserKey)

	if errors.Is(tokenErr, storage.ErrNotFound) && errors.Is(userErr, storage.ErrNotFound) {
		s.logger.Debug("no persisted session")
		return nil
	}
	if tokenErr != nil || userErr != nil {
		s.logger.Warn("persisted session incomplete", "token_error", errString(tokenErr), "user_error", errString(userErr))
		s.purge(ctx)
		return nil
	}
	if _, err := decodeIdentity(cached); err != nil {
		s.logger.Warn("cached identity unreadable", "error", err)
		s.purge(ctx)
		return nil
	}

	user, err := s.client.Me(ctx)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if s.superseded(ctx, token) {
		s.logger.Debug("session replaced during restore, discarding result")
		return nil
	}
	if err != nil {
		s.logger.Info("session restore rejected", "kind", errors.KindOf(err).String(), "error", err)
		s.purgeLocked(ctx)
		return nil
	}
	if s.isClosed() {
		return nil
	}

	fresh := identityFromUser(*user)
	data, err := encodeIdentity(fresh)
	if err != nil {
		s.purgeLocked(ctx)
		return nil
	}
	if err := s.kv.Save(ctx, UserKey, data); err != nil {
		s.logger.Warn("failed to refresh cached identity", "error", err)
		s.purgeLocked(ctx)
		return nil
	}
	s.mu.Lock()
	s.identity = fresh.clone()
	s.mu.Unlock()

	s.logger.WithUser(fresh.ID).Info("session restored")
	return fresh.clone()
}

// -----------------------------------------------------------------------------
// Login / Signup
// -----------------------------------------------------------------------------

// Login authenticates with an email or phone number and a password.
// On failure the returned error carries a human-readable reason (see
// errors.UserMessage) and the current state is left untouched.
func (s *Store) Login(ctx context.Context, credential, secret string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, errors.NewValidationError(msgCredentialIsRequired).WithField("credential")
	}

	resp, err := s.client.Login(ctx, credential, secret)
	if err != nil {
		return nil, s.failure("login", err, MsgLoginFailed)
	}
	return s.commit(ctx, resp, event.ReasonLogin)
}

// LoginWithPhone authenticates a phone-only account. It uses the same
// endpoint as Login with an empty password.
func (s *Store) LoginWithPhone(ctx context.Context, phone string) (*Identity, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.NewValidationError("phone number is required").WithField("phone")
	}

	resp, err := s.client.Login(ctx, phone, "")
	if err != nil {
		return nil, s.failure("login_phone", err, MsgPhoneNotRegistered)
	}
	return s.commit(ctx, resp, event.ReasonLogin)
}

// Signup registers an email account and logs it in.
func (s *Store) Signup(ctx context.Context, fullName, email, secret string) (*Identity, error) {
	fullName, email = strings.TrimSpace(fullName), strings.TrimSpace(email)
	if fullName == "" {
		return nil, errors.NewValidationError("full name is required").WithField("full_name")
	}
	if email == "" {
		return nil, errors.NewValidationError("email is required").WithField("email")
	}

	resp, err := s.client.Register(ctx, api.RegisterRequest{Email: email, Password: secret, FullName: fullName})
	if err != nil {
		return nil, s.failure("signup", err, MsgEmailRegistered)
	}
	return s.commit(ctx, resp, event.ReasonSignup)
}

// SignupWithPhone registers a phone-only account and logs it in.
func (s *Store) SignupWithPhone(ctx context.Context, fullName, phone string) (*Identity, error) {
	fullName, phone = strings.TrimSpace(fullName), strings.TrimSpace(phone)
	if fullName == "" {
		return nil, errors.NewValidationError("full name is required").WithField("full_name")
	}
	if phone == "" {
		return nil, errors.NewValidationError("phone number is required").WithField("phone")
	}

	resp, err := s.client.Register(ctx, api.RegisterRequest{Phone: phone, FullName: fullName})
	if err != nil {
		return nil, s.failure("signup_phone", err, MsgPhoneRegistered)
	}
	return s.commit(ctx, resp, event.ReasonSignup)
}

// failure normalizes an authentication failure. Rejections (401/403 and
// 4xx business errors such as a duplicate account) become AuthErrors whose
// message is the service detail or fallback. Transport failures and 5xx
// responses keep their kind.
func (s *Store) failure(op string, err error, fallback string) error {
	s.logger.Warn("authentication failed", "op", op, "kind", errors.KindOf(err).String(), "error", err)

	var authErr *errors.AuthError
	if errors.As(err, &authErr) {
		if authErr.StatusCode == 0 {
			return err
		}
		return errors.NewAuthError(authErr.StatusCode, errors.UserMessage(err, fallback), nil)
	}
	var remote *errors.RemoteError
	if errors.As(err, &remote) {
		msg := errors.UserMessage(err, fallback)
		if remote.StatusCode >= 500 {
			return errors.NewRemoteError(remote.StatusCode, msg)
		}
		return errors.NewAuthError(remote.StatusCode, msg, nil)
	}
	return err
}

// commit persists resp (token first, then identity) and only then publishes
// the identity to memory. If the identity write fails the token write is
// rolled back to its previous value.
func (s *Store) commit(ctx context.Context, resp *api.AuthResponse, reason string) (*Identity, error) {
	token := strings.TrimSpace(resp.AccessToken)
	if token == "" {
		return nil, errors.NewTransportError("commit session", nil).WithMessage(msgMissingAccessToken)
	}
	ident := identityFromUser(resp.User)
	data, err := encodeIdentity(ident)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode identity")
	}

	s.commitMu.Lock()
	if s.isClosed() {
		s.commitMu.Unlock()
		s.logger.Debug("discarding session result after close")
		return nil, errors.ErrClosed
	}

	// Detached so a caller cancelling mid-commit cannot strand a half-written
	// session.
	wctx := context.WithoutCancel(ctx)
	previous, prevErr := s.kv.Load(wctx, api.TokenKey)

	if err := s.kv.Save(wctx, api.TokenKey, []byte(token)); err != nil {
		s.commitMu.Unlock()
		return nil, errors.Wrap(err, "failed to persist session token")
	}
	if err := s.kv.Save(wctx, UserKey, data); err != nil {
		if prevErr == nil {
			_ = s.kv.Save(wctx, api.TokenKey, previous)
		} else {
			_ = s.kv.Delete(wctx, api.TokenKey)
		}
		s.commitMu.Unlock()
		return nil, errors.Wrap(err, "failed to persist identity")
	}

	s.mu.Lock()
	s.identity = ident.clone()
	s.mu.Unlock()
	s.commitMu.Unlock()

	s.logger.WithUser(ident.ID).Info("session established", "reason", reason)
	s.publish(event.NewSessionChangedEvent(true, ident.ID, reason))
	return ident.clone(), nil
}

// -----------------------------------------------------------------------------
// Logout
// -----------------------------------------------------------------------------

// Logout notifies the service (best effort) and then clears the in-memory
// identity and both persisted entries. It never fails and is idempotent.
func (s *Store) Logout(ctx context.Context) {
	if err := s.client.Logout(ctx); err != nil && !errors.Is(err, errors.ErrNoSession) {
		s.logger.Debug("remote logout failed", "error", err)
	}

	s.commitMu.Lock()
	s.purgeLocked(ctx)
	s.mu.Lock()
	previous := s.identity
	s.identity = nil
	s.mu.Unlock()
	s.commitMu.Unlock()

	if previous != nil {
		s.logger.WithUser(previous.ID).Info("logged out")
		s.publish(event.NewSessionChangedEvent(false, 0, event.ReasonLogout))
	}
}

func (s *Store) purge(ctx context.Context) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.purgeLocked(ctx)
}

// superseded reports whether the persisted token is no longer the one
// restore started with, meaning a login or logout committed meanwhile.
// commitMu must be held.
func (s *Store) superseded(ctx context.Context, token []byte) bool {
	current, err := s.kv.Load(context.WithoutCancel(ctx), api.TokenKey)
	if err != nil {
		return true
	}
	return string(current) != string(token)
}

// purgeLocked deletes both persisted entries. commitMu must be held.
func (s *Store) purgeLocked(ctx context.Context) {
	wctx := context.WithoutCancel(ctx)
	for _, key := range []string{api.TokenKey, UserKey} {
		if err := s.kv.Delete(wctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to clear session entry", "key", key, "error", err)
		}
	}
}

func (s *Store) publish(e event.Event) {
	if s.isClosed() {
		return
	}
	s.bus.Publish(e)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
