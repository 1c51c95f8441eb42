package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/handlers"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/requests"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/responses"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// RegisterAuthRoutes registers the public login routes.
func RegisterAuthRoutes(router gin.IRoutes, handler *handlers.AuthHandler) {
	router.POST("/auth/guest", guestLogin(handler))
	router.POST("/auth/signup", signup(handler))
	router.POST("/auth/login", login(handler))
}

// RegisterAccountRoutes registers the routes that need an authenticated principal.
func RegisterAccountRoutes(router gin.IRoutes, handler *handlers.AuthHandler) {
	router.GET("/auth/me", me(handler))
}

// guestLogin godoc
// @Summary      Start a guest session
// @Description  Issues a guest token. Guest conversations are kept in memory until the guest signs up or logs in.
// @Tags         Auth API
// @Accept       json
// @Produce      json
// @Param        request body requests.GuestLoginRequest false "Display name"
// @Success      201 {object} user.GuestResult
// @Failure      500 {object} responses.ErrorResponse
// @Router       /auth/guest [post]
func guestLogin(handler *handlers.AuthHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requests.GuestLoginRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error())
				return
			}
		}

		result, err := handler.GuestLogin(c.Request.Context(), req.Name)
		if err != nil {
			responses.HandleError(c, err, "failed to start guest session")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

// signup godoc
// @Summary      Create an account
// @Description  Registers an account. When called with a guest token, the guest's conversations are moved to the new account and conversationMappings lists old to new conversation ids.
// @Tags         Auth API
// @Accept       json
// @Produce      json
// @Param        request body requests.SignupRequest true "Account"
// @Success      201 {object} user.AuthResult
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Router       /auth/signup [post]
func signup(handler *handlers.AuthHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requests.SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error())
			return
		}

		result, err := handler.Signup(c.Request.Context(), callerPrincipal(c), req.Email, req.Password, req.Name, req.GuestID)
		if err != nil {
			responses.HandleError(c, err, "failed to sign up")
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

// login godoc
// @Summary      Log in
// @Description  Authenticates an account. When called with a guest token, the guest's conversations are merged into the account.
// @Tags         Auth API
// @Accept       json
// @Produce      json
// @Param        request body requests.LoginRequest true "Credentials"
// @Success      200 {object} user.AuthResult
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Router       /auth/login [post]
func login(handler *handlers.AuthHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requests.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error())
			return
		}

		result, err := handler.Login(c.Request.Context(), callerPrincipal(c), req.Email, req.Password, req.GuestID)
		if err != nil {
			responses.HandleError(c, err, "failed to log in")
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// me godoc
// @Summary      Current principal
// @Tags         Auth API
// @Produce      json
// @Success      200 {object} responses.MeResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /auth/me [get]
func me(handler *handlers.AuthHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		account, err := handler.Me(c.Request.Context(), p)
		if err != nil {
			responses.HandleError(c, err, "failed to load user")
			return
		}
		c.JSON(http.StatusOK, responses.MeResponse{Principal: p, User: account})
	}
}

func callerPrincipal(c *gin.Context) *user.Principal {
	p, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		return nil
	}
	return &p
}
