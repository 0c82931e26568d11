package token

import (
	"context"
	"strings"
	"time"

	"github.com/facilitaservicos/authcore/identity"
	"github.com/facilitaservicos/authcore/internal/utils"
	"github.com/facilitaservicos/authcore/otp"
	"github.com/facilitaservicos/authcore/password"
	"github.com/facilitaservicos/authcore/presence"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Credentials carries everything a caller presents on login. OneTimeCode is
// required only for identities with the second factor enabled.
type Credentials struct {
	LoginID     string
	Password    string
	OneTimeCode string
}

// RequestContext carries caller metadata attached to token claims and logs.
type RequestContext struct {
	ClientIP  string
	UserAgent string
	Scopes    []string
}

// TokenPair is an access/refresh token pair. Immutable once issued; it is
// invalidated only by revocation or natural expiry.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	IssuedAt         time.Time `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Manager is the token lifecycle service: it authenticates credentials,
// issues signed token pairs, refreshes them with rotation, answers
// introspection queries, and revokes refresh tokens. Collaborators are
// reached through narrow interfaces and every expiry comparison within a
// call uses a single now snapshot.
type Manager struct {
	repo     identity.Repo
	signer   *KeyRingSigner
	engine   *password.Engine
	codes    *otp.Manager
	revoked  RevokedTokenCache
	sessions *presence.Tracker

	issuer           string
	audience         string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	leeway           time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration

	nowFunc func() time.Time
	logger  zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTokenExpiry overrides access and refresh token lifetimes.
func WithTokenExpiry(accessTTL, refreshTTL time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTTL = accessTTL
		m.refreshTTL = refreshTTL
	}
}

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// WithAudience sets the aud claim.
func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

// WithLockoutPolicy overrides the failed-attempt threshold and window.
func WithLockoutPolicy(threshold int, window time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lockoutThreshold = threshold
		m.lockoutWindow = window
	}
}

// WithClockSkewLeeway sets the leeway applied symmetrically when
// validating exp/iat claims.
func WithClockSkewLeeway(leeway time.Duration) ManagerOption {
	return func(m *Manager) {
		m.leeway = leeway
	}
}

// WithSecondFactor enables the 2FA gate using the given code manager.
func WithSecondFactor(codes *otp.Manager) ManagerOption {
	return func(m *Manager) {
		m.codes = codes
	}
}

// WithRevokedTokenCache replaces the default in-memory denylist.
func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revoked = cache
	}
}

// WithPresenceTracker wires an online-status tracker.
func WithPresenceTracker(tracker *presence.Tracker) ManagerOption {
	return func(m *Manager) {
		m.sessions = tracker
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the structured logger (defaults to a no-op logger).
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New initializes a token lifecycle manager with required dependencies.
// The access token lifetime must be strictly shorter than the refresh
// token lifetime.
func New(repo identity.Repo, signer *KeyRingSigner, engine *password.Engine, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[token.New] identity repo is required")
	}
	if signer == nil {
		return nil, errors.New("[token.New] signer is required")
	}
	if engine == nil {
		return nil, errors.New("[token.New] password engine is required")
	}

	m := &Manager{
		repo:             repo,
		signer:           signer,
		engine:           engine,
		revoked:          NewInMemoryRevokedTokenCache(),
		issuer:           "authcore",
		audience:         "api",
		accessTTL:        15 * time.Minute,
		refreshTTL:       30 * 24 * time.Hour,
		leeway:           5 * time.Second,
		lockoutThreshold: 5,
		lockoutWindow:    15 * time.Minute,
		nowFunc:          time.Now,
		logger:           zerolog.Nop(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTTL >= m.refreshTTL {
		return nil, errors.New("[token.New] access token lifetime must be shorter than refresh token lifetime")
	}
	return m, nil
}

// Authenticate checks the presented credentials and issues a token pair.
// Unknown identities and password mismatches report identically as
// ErrInvalidCredentials; lockout reports ErrAccountLocked distinctly, even
// when the password is correct.
func (m *Manager) Authenticate(ctx context.Context, creds Credentials, reqCtx RequestContext) (*TokenPair, error) {
	now := m.nowFunc()

	ident, err := m.repo.FindByLoginID(ctx, creds.LoginID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrapf(ErrBackendUnavailable, "identity lookup: %v", err)
	}

	if !ident.Active {
		return nil, ErrInvalidCredentials
	}

	if m.isLockedOut(ident, now) {
		m.logger.Warn().Str("identity", ident.ID).Msg("authentication rejected, account locked")
		return nil, ErrAccountLocked
	}

	if !identity.CheckPasswordHash(creds.Password, ident.PasswordHash) {
		if _, err := m.repo.IncrementFailedAttempts(ctx, ident.ID, now); err != nil {
			m.logger.Error().Err(err).Str("identity", ident.ID).Msg("failed-attempt increment failed")
		}
		return nil, ErrInvalidCredentials
	}

	if ident.TwoFactorEnabled {
		if m.codes == nil || creds.OneTimeCode == "" {
			return nil, ErrSecondFactorRequired
		}
		if !m.codes.Verify(ctx, ident.ID, creds.OneTimeCode) {
			return nil, ErrInvalidCredentials
		}
	}

	if err := m.repo.ResetFailedAttempts(ctx, ident.ID); err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "reset failed attempts: %v", err)
	}
	if err := m.repo.RecordSuccess(ctx, ident.ID, now); err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "record success: %v", err)
	}

	pair, err := m.issuePair(ident, reqCtx.Scopes, now)
	if err != nil {
		return nil, err
	}

	if m.sessions != nil {
		m.sessions.MarkOnline(ident.ID)
	}
	m.logger.Info().Str("identity", ident.ID).Str("client_ip", reqCtx.ClientIP).
		Msg("token pair issued")
	return pair, nil
}

// Refresh verifies a refresh token and issues a replacement pair. The
// presented token is invalidated whether or not the replacement succeeds,
// so it can never be replayed.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, reqCtx RequestContext) (*TokenPair, error) {
	now := m.nowFunc()

	claims, err := m.parseToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if use, _ := claims["token_use"].(string); use != tokenUseRefresh {
		return nil, ErrInvalidOrExpiredToken
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	revoked, err := m.revoked.IsRevoked(ctx, jti)
	if err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "revocation lookup: %v", err)
	}
	if revoked {
		return nil, ErrInvalidOrExpiredToken
	}

	// Single use: deny the presented token before anything else can fail.
	exp, _ := claims["exp"].(float64)
	if err := m.revoked.Add(ctx, jti, time.Unix(int64(exp), 0)); err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "refresh token invalidation: %v", err)
	}

	loginID, _ := claims["login"].(string)
	ident, err := m.repo.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, errors.Wrapf(ErrBackendUnavailable, "identity lookup: %v", err)
	}
	if !ident.Active {
		return nil, ErrInvalidOrExpiredToken
	}

	scopes := utils.ToStringSlice(anySlice(claims["scope"]))
	pair, err := m.issuePair(ident, scopes, now)
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("identity", ident.ID).Msg("token pair refreshed")
	return pair, nil
}

// Introspect reports a token's validity and claims. It never fails:
// malformed, expired, unknown-key, and revoked tokens all produce
// {active: false} with no distinguishing information, and backend errors
// fail closed the same way.
func (m *Manager) Introspect(ctx context.Context, rawToken string) *IntrospectionResult {
	if strings.TrimSpace(rawToken) == "" {
		return &IntrospectionResult{Active: false}
	}

	claims, err := m.parseToken(rawToken)
	if err != nil {
		return &IntrospectionResult{Active: false}
	}

	jti, _ := claims["jti"].(string)
	if jti != "" {
		revoked, err := m.revoked.IsRevoked(ctx, jti)
		if err != nil || revoked {
			return &IntrospectionResult{Active: false}
		}
	}

	sub, _ := claims["sub"].(string)
	iss, _ := claims["iss"].(string)
	use, _ := claims["token_use"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &IntrospectionResult{
		Active:   true,
		Sub:      utils.Ptr(sub),
		Scopes:   utils.ToStringSlice(anySlice(claims["scope"])),
		Exp:      utils.Ptr(int64(exp)),
		Iat:      utils.Ptr(int64(iat)),
		Iss:      utils.Ptr(iss),
		TokenUse: utils.Ptr(use),
	}
}

// Revoke invalidates a refresh token. It always reports success: revoking
// an unknown, malformed, or already-revoked token is indistinguishable
// from revoking a live one, and even a denylist write failure is only
// logged. Intentional per RFC 7009.
func (m *Manager) Revoke(ctx context.Context, rawToken string) error {
	claims, err := m.parseToken(rawToken)
	if err != nil {
		return nil
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}

	exp, _ := claims["exp"].(float64)
	if err := m.revoked.Add(ctx, jti, time.Unix(int64(exp), 0)); err != nil {
		m.logger.Warn().Err(err).Msg("revocation denylist write failed")
		return nil
	}

	if sub, _ := claims["sub"].(string); sub != "" && m.sessions != nil {
		m.sessions.MarkOffline(sub)
	}
	m.logger.Info().Msg("token revoked")
	return nil
}

// ChangePassword verifies the current password, validates the replacement
// against policy, and stores the new hash stamped with the change time.
func (m *Manager) ChangePassword(ctx context.Context, loginID, oldPassword, newPassword string) error {
	now := m.nowFunc()

	ident, err := m.repo.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return errors.Wrapf(ErrBackendUnavailable, "identity lookup: %v", err)
	}
	if !ident.Active || !identity.CheckPasswordHash(oldPassword, ident.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := m.engine.Validate(newPassword); err != nil {
		return err
	}

	hash, err := identity.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "token.Manager.ChangePassword hash")
	}
	if err := m.repo.UpdatePasswordHash(ctx, ident.ID, hash, now); err != nil {
		return errors.Wrapf(ErrBackendUnavailable, "password update: %v", err)
	}

	m.logger.Info().Str("identity", ident.ID).Msg("password changed")
	return nil
}

// PasswordExpired reports whether the identity behind loginID must rotate
// its password.
func (m *Manager) PasswordExpired(ctx context.Context, loginID string) (bool, error) {
	ident, err := m.repo.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return false, ErrInvalidCredentials
		}
		return false, errors.Wrapf(ErrBackendUnavailable, "identity lookup: %v", err)
	}
	return m.engine.IsExpired(ident), nil
}

func (m *Manager) isLockedOut(ident *identity.Identity, now time.Time) bool {
	return ident.FailedAttempts >= m.lockoutThreshold &&
		now.Sub(ident.LastFailureAt) < m.lockoutWindow
}

func (m *Manager) issuePair(ident *identity.Identity, scopes []string, now time.Time) (*TokenPair, error) {
	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	accessToken, err := m.signer.Sign(m.claims(ident, scopes, now, accessExp, tokenUseAccess))
	if err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "sign access token: %v", err)
	}
	refreshToken, err := m.signer.Sign(m.claims(ident, scopes, now, refreshExp, tokenUseRefresh))
	if err != nil {
		return nil, errors.Wrapf(ErrBackendUnavailable, "sign refresh token: %v", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "bearer",
		ExpiresIn:        int(m.accessTTL.Seconds()),
		IssuedAt:         now,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) claims(ident *identity.Identity, scopes []string, now, exp time.Time, use string) jwt.MapClaims {
	loginID := ident.Username
	if loginID == "" {
		loginID = ident.Email
	}

	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       ident.ID,
		"aud":       m.audience,
		"login":     loginID,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.New().String(),
		"token_use": use,
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}
	return claims
}

func (m *Manager) parseToken(rawToken string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithLeeway(m.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidOrExpiredToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}
