package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/userhub/internal/accounts"
	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/gin-gonic/gin"
)

// bcrypt keeps these well above a plain query timeout.
const userOpTimeout = 3 * time.Second

type UserService interface {
	CreateUser(ctx context.Context, email, password string, extra accounts.Extra) (account.Account, error)
	Login(ctx context.Context, email, password string) (account.Account, error)
	UpdateProfile(ctx context.Context, id int64, u accounts.ProfileUpdate) (account.Account, error)
}

type TokenIssuer interface {
	Issue(accountID int64, email string) (string, error)
}

type UsersHandler struct {
	users  UserService
	tokens TokenIssuer
	prom   *observability.Prom
}

func NewUsersHandler(users UserService, tokens TokenIssuer, prom *observability.Prom) *UsersHandler {
	return &UsersHandler{users: users, tokens: tokens, prom: prom}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=5,maxbytes=72"`
	Name     string `json:"name" binding:"max=255"`
}

type TokenRequest struct {
	Email    string `json:"email" binding:"required,max=255"`
	Password string `json:"password" binding:"required,maxbytes=72"`
}

// UpdateMeRequest is a partial update; absent fields are left alone.
type UpdateMeRequest struct {
	Name     *string `json:"name" binding:"omitnil,max=255"`
	Password *string `json:"password" binding:"omitnil,min=5,maxbytes=72"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), userOpTimeout)
	defer cancel()

	a, err := h.users.CreateUser(cctx, req.Email, req.Password, accounts.Extra{Name: req.Name})

	if err != nil {
		respondAccountWriteError(ctx, err, "failed to create user")
		return
	}

	h.prom.IncCreated("signup")

	ctx.JSON(http.StatusCreated, a.Profile())
}

func (h *UsersHandler) Token(ctx *gin.Context) {
	var req TokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), userOpTimeout)
	defer cancel()

	a, err := h.users.Login(cctx, req.Email, req.Password)

	if errors.Is(err, account.ErrInvalidCredentials) {
		RespondError(ctx, http.StatusBadRequest, "invalid_credentials",
			"Unable to authenticate with provided credentials.", nil)
		return
	}

	if err != nil {
		RespondInternal(ctx, "failed to authenticate", err)
		return
	}

	token, err := h.tokens.Issue(a.ID, a.Email)

	if err != nil {
		RespondInternal(ctx, "failed to issue token", err)
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	a, ok := middlewares.AccountFromContext(ctx)

	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil)
		return
	}

	ctx.JSON(http.StatusOK, a.Profile())
}

func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	a, ok := middlewares.AccountFromContext(ctx)

	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil)
		return
	}

	var req UpdateMeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), userOpTimeout)
	defer cancel()

	updated, err := h.users.UpdateProfile(cctx, a.ID, accounts.ProfileUpdate{
		Name:     req.Name,
		Password: req.Password,
	})

	if err != nil {
		respondAccountWriteError(ctx, err, "failed to update user")
		return
	}

	ctx.JSON(http.StatusOK, updated.Profile())
}

// respondAccountWriteError maps create/update failures shared by the user
// and admin endpoints.
func respondAccountWriteError(ctx *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, account.ErrEmailTaken):
		RespondFieldError(ctx, "Invalid request body", FieldError{
			Field:   "email",
			Rule:    "unique",
			Message: validationMessage("unique", ""),
		})
	case errors.Is(err, account.ErrEmailRequired):
		RespondFieldError(ctx, "Invalid request body", FieldError{
			Field:   "email",
			Rule:    "required",
			Message: validationMessage("required", ""),
		})
	case errors.Is(err, security.ErrPasswordTooLong):
		RespondFieldError(ctx, "Invalid request body", FieldError{
			Field:   "password",
			Rule:    "maxbytes",
			Param:   "72",
			Message: validationMessage("maxbytes", "72"),
		})
	case errors.Is(err, account.ErrNotFound):
		RespondNotFound(ctx, "Account not found.")
	default:
		RespondInternal(ctx, internalMsg, err)
	}
}
