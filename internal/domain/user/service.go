package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/janhq/evaluator-server/internal/utils/idgen"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
	"github.com/janhq/evaluator-server/pkg/telemetry"
)

// ServiceConfig carries token lifetimes.
type ServiceConfig struct {
	GuestTokenTTL time.Duration
	UserTokenTTL  time.Duration
}

// Service registers users, authenticates them and mints principal tokens.
type Service struct {
	repo   Repository
	tokens TokenIssuer
	merger SessionMerger
	cfg    ServiceConfig
	log    zerolog.Logger
}

// NewService constructs a Service with required dependencies.
func NewService(repo Repository, tokens TokenIssuer, merger SessionMerger, cfg ServiceConfig, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		merger: merger,
		cfg:    cfg,
		log:    log.With().Str("component", "auth-service").Logger(),
	}
}

// GuestLogin mints a token for a fresh guest identity.
func (s *Service) GuestLogin(ctx context.Context, name string) (*GuestResult, error) {
	guestID, err := idgen.NewGuestID()
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate guest id")
	}

	principal := Principal{UserID: guestID, IsGuest: true, Role: RoleGuest, Name: strings.TrimSpace(name)}
	token, err := s.tokens.Issue(principal, s.cfg.GuestTokenTTL)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to issue guest token")
	}

	s.log.Info().Str("guest_id", telemetry.Default().UserID(guestID)).Msg("guest session started")
	return &GuestResult{AccessToken: token, Principal: principal}, nil
}

// Signup creates an account and merges the guest session when guestID is supplied.
func (s *Service) Signup(ctx context.Context, email, password, name, guestID string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"a valid email is required", err, "")
	}
	if len(password) < MinPasswordLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"password must be at least 6 characters", nil, "")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up user")
	}
	if existing != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			ErrEmailTaken.Error(), ErrEmailTaken, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to hash password")
	}

	now := time.Now().UTC()
	u := &User{
		ID:           idgen.NewUUID(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Tier:         TierFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				ErrEmailTaken.Error(), err, "")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create user")
	}

	s.log.Info().Str("user_id", telemetry.Default().UserID(u.ID)).Msg("user registered")
	return s.authenticate(ctx, u, guestID)
}

// Login verifies credentials and merges the guest session when guestID is supplied.
func (s *Service) Login(ctx context.Context, email, password, guestID string) (*AuthResult, error) {
	u, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up user")
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			ErrInvalidCredentials.Error(), ErrInvalidCredentials, "")
	}
	return s.authenticate(ctx, u, guestID)
}

// Me resolves the principal into a user record. Guests have no record and get nil.
func (s *Service) Me(ctx context.Context, principal Principal) (*User, error) {
	if principal.IsGuest {
		return nil, nil
	}
	u, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load user")
	}
	if u == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			ErrUserNotFound.Error(), ErrUserNotFound, "")
	}
	return u, nil
}

func (s *Service) authenticate(ctx context.Context, u *User, guestID string) (*AuthResult, error) {
	token, err := s.tokens.Issue(Principal{UserID: u.ID, Role: RoleUser, Name: u.Name}, s.cfg.UserTokenTTL)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to issue token")
	}

	result := &AuthResult{AccessToken: token, User: u}
	if guestID == "" || s.merger == nil {
		return result, nil
	}

	// A failed merge leaves the guest session in memory; logging in again with the guest
	// token retries it.
	mappings, err := s.merger.Merge(ctx, u.ID, guestID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", telemetry.Default().UserID(u.ID)).Str("guest_id", telemetry.Default().UserID(guestID)).Msg("failed to merge guest session")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to merge guest session")
	}
	result.ConversationMappings = mappings
	return result, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
