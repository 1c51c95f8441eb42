package handlers

import (
	"context"

	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// Authenticator issues principals and resolves them back into accounts.
type Authenticator interface {
	GuestLogin(ctx context.Context, name string) (*user.GuestResult, error)
	Signup(ctx context.Context, email, password, name, guestID string) (*user.AuthResult, error)
	Login(ctx context.Context, email, password, guestID string) (*user.AuthResult, error)
	Me(ctx context.Context, principal user.Principal) (*user.User, error)
}

// AuthHandler handles guest login, signup, login and principal lookups.
type AuthHandler struct {
	users Authenticator
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users Authenticator) *AuthHandler {
	return &AuthHandler{users: users}
}

// GuestLogin issues a guest token.
func (h *AuthHandler) GuestLogin(ctx context.Context, name string) (*user.GuestResult, error) {
	return h.users.GuestLogin(ctx, name)
}

// Signup registers an account. caller is the guest principal presenting the request, if any;
// its conversations are merged into the new account.
func (h *AuthHandler) Signup(ctx context.Context, caller *user.Principal, email, password, name, guestID string) (*user.AuthResult, error) {
	mergeID, err := resolveGuestID(ctx, caller, guestID)
	if err != nil {
		return nil, err
	}
	return h.users.Signup(ctx, email, password, name, mergeID)
}

// Login authenticates an account and merges the caller's guest session like Signup.
func (h *AuthHandler) Login(ctx context.Context, caller *user.Principal, email, password, guestID string) (*user.AuthResult, error) {
	mergeID, err := resolveGuestID(ctx, caller, guestID)
	if err != nil {
		return nil, err
	}
	return h.users.Login(ctx, email, password, mergeID)
}

// Me returns the account behind the principal. Guests have none.
func (h *AuthHandler) Me(ctx context.Context, principal user.Principal) (*user.User, error) {
	return h.users.Me(ctx, principal)
}

// resolveGuestID returns the guest session to merge. Only the guest identified by the
// request token can be merged; a guestId in the body must name that same guest.
func resolveGuestID(ctx context.Context, caller *user.Principal, requested string) (string, error) {
	var tokenGuest string
	if caller != nil && caller.IsGuest {
		tokenGuest = caller.UserID
	}
	if requested != "" && requested != tokenGuest {
		return "", platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeForbidden,
			"guestId does not match the guest session token", nil, "")
	}
	return tokenGuest, nil
}
