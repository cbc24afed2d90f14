package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"matricare/pkg/ai"
	"matricare/pkg/auth"
	"matricare/pkg/domain"
	"matricare/pkg/ml"
	"matricare/pkg/store"
	"matricare/pkg/token"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	Store      store.Store
	Tokens     *token.Issuer
	Classifier ml.RiskClassifier
	Generator  ai.TextGenerator

	// AdminEmails is the operator-configured allowlist of addresses that
	// hold the admin flag. The flag is never self-assigned: registering
	// with the "admin" role grants nothing on its own.
	AdminEmails map[string]struct{}

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// App is the core application service wiring storage, tokens, and the
// external prediction and generation collaborators.
type App struct {
	store       store.Store
	tokens      *token.Issuer
	classifier  ml.RiskClassifier
	generator   ai.TextGenerator
	adminEmails map[string]struct{}
	now         func() time.Time
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	issuer := cfg.Tokens
	if issuer == nil {
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, fmt.Errorf("jwt secret required")
		}
		var opts []token.Option
		if cfg.TokenTTL > 0 {
			opts = append(opts, token.WithTTL(cfg.TokenTTL))
		}
		if cfg.Clock != nil {
			opts = append(opts, token.WithClock(cfg.Clock))
		}
		var err error
		issuer, err = token.NewIssuer(cfg.JWTSecret, opts...)
		if err != nil {
			return nil, fmt.Errorf("init token issuer: %w", err)
		}
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	adminEmails := make(map[string]struct{}, len(cfg.AdminEmails))
	for email := range cfg.AdminEmails {
		adminEmails[NormalizeEmail(email)] = struct{}{}
	}

	return &App{
		store:       dataStore,
		tokens:      issuer,
		classifier:  cfg.Classifier,
		generator:   cfg.Generator,
		adminEmails: adminEmails,
		now:         now,
	}, nil
}

// isAdminEmail reports whether the address is on the configured admin
// allowlist. Admin standing comes only from that allowlist, never from the
// role string a client picked at registration.
func (a *App) isAdminEmail(email string) bool {
	_, ok := a.adminEmails[NormalizeEmail(email)]
	return ok
}

// NormalizeEmail trims and lowercases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns it with a fresh bearer token.
func (a *App) Register(email, password, fullName string, role domain.UserRole) (domain.User, string, error) {
	email = NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return domain.User{}, "", ValidationError("a valid email address is required")
	case len(password) < 6:
		return domain.User{}, "", ValidationError("password must be at least 6 characters")
	case fullName == "":
		return domain.User{}, "", ValidationError("full name is required")
	case !domain.ValidRole(role):
		return domain.User{}, "", ValidationError("role must be mother, nurse, or admin")
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  hashed,
		FullName:  fullName,
		Role:      role,
		IsAdmin:   a.isAdminEmail(email),
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, "", ConflictError("an account with this email already exists")
		}
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	bearer, err := a.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, bearer, nil
}

// Login verifies credentials and returns the user with a fresh bearer token.
// Legacy plaintext credentials are upgraded to a hash on first successful
// login; the rewrite happens exactly once and is invisible to the caller.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ValidationError("email and password are required")
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, "", AuthenticationError("incorrect email or password")
	}

	if auth.IsHash(user.Password) {
		if !auth.CheckPassword(password, user.Password) {
			return domain.User{}, "", AuthenticationError("incorrect email or password")
		}
	} else {
		// Legacy plaintext credential.
		if user.Password != password {
			return domain.User{}, "", AuthenticationError("incorrect email or password")
		}
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("hash password: %w", err)
		}
		if err := a.store.UpdateUserPassword(user.ID, hashed); err != nil {
			return domain.User{}, "", fmt.Errorf("migrate credential: %w", err)
		}
		user.Password = hashed
	}

	if a.isAdminEmail(user.Email) {
		// Allowlist additions cover accounts created before the entry.
		user.IsAdmin = true
	}

	bearer, err := a.tokens.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, bearer, nil
}

// Authenticate resolves a bearer token to its user record.
func (a *App) Authenticate(bearer string) (domain.User, error) {
	claims, err := a.tokens.Verify(bearer)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return domain.User{}, AuthenticationError("token expired, please log in again")
		}
		return domain.User{}, AuthenticationError("invalid token")
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, AuthenticationError("invalid token")
	}
	if a.isAdminEmail(user.Email) {
		user.IsAdmin = true
	}
	return user, nil
}
