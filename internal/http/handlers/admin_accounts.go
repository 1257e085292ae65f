package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/userhub/internal/accounts"
	"github.com/geocoder89/userhub/internal/domain/account"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/gin-gonic/gin"
)

const (
	defaultAdminPageSize = 50
	maxAdminPageSize     = 200
)

type AdminAccountService interface {
	CreateUser(ctx context.Context, email, password string, extra accounts.Extra) (account.Account, error)
	Get(ctx context.Context, id int64) (account.Account, error)
	List(ctx context.Context, limit, offset int) ([]account.Account, int, error)
	AdminUpdate(ctx context.Context, id int64, u accounts.AdminUpdate) (account.Account, error)
}

type AdminAccountsHandler struct {
	accounts AdminAccountService
	prom     *observability.Prom
}

func NewAdminAccountsHandler(svc AdminAccountService, prom *observability.Prom) *AdminAccountsHandler {
	return &AdminAccountsHandler{accounts: svc, prom: prom}
}

// AdminAccountView leads with email and name, the columns operators scan first.
type AdminAccountView struct {
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	ID          int64      `json:"id"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func adminView(a account.Account) AdminAccountView {
	return AdminAccountView{
		Email:       a.Email,
		Name:        a.Name,
		ID:          a.ID,
		IsActive:    a.IsActive,
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
		LastLogin:   a.LastLogin,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type AdminCreateAccountRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password1   string `json:"password1" binding:"required,min=5,maxbytes=72"`
	Password2   string `json:"password2" binding:"required"`
	Name        string `json:"name" binding:"max=255"`
	IsActive    *bool  `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// AdminUpdateAccountRequest has no last_login field, so a submitted value
// is dropped by the decoder.
type AdminUpdateAccountRequest struct {
	Email       *string `json:"email" binding:"omitnil,email,max=255"`
	Name        *string `json:"name" binding:"omitnil,max=255"`
	Password    *string `json:"password" binding:"omitnil,min=5,maxbytes=72"`
	IsActive    *bool   `json:"is_active"`
	IsStaff     *bool   `json:"is_staff"`
	IsSuperuser *bool   `json:"is_superuser"`
}

type AdminAccountList struct {
	Items  []AdminAccountView `json:"items"`
	Count  int                `json:"count"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (h *AdminAccountsHandler) List(ctx *gin.Context) {
	limit, ok := queryInt(ctx, "limit", defaultAdminPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(ctx, "offset", 0)
	if !ok {
		return
	}

	if limit < 1 || limit > maxAdminPageSize {
		RespondBadRequest(ctx, "limit must be between 1 and "+strconv.Itoa(maxAdminPageSize), nil)
		return
	}
	if offset < 0 {
		RespondBadRequest(ctx, "offset must not be negative", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, total, err := h.accounts.List(cctx, limit, offset)

	if err != nil {
		RespondInternal(ctx, "failed to list accounts", err)
		return
	}

	views := make([]AdminAccountView, 0, len(items))
	for _, a := range items {
		views = append(views, adminView(a))
	}

	ctx.JSON(http.StatusOK, AdminAccountList{
		Items:  views,
		Count:  len(views),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *AdminAccountsHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	a, err := h.accounts.Get(cctx, id)

	if errors.Is(err, account.ErrNotFound) {
		RespondNotFound(ctx, "Account not found.")
		return
	}
	if err != nil {
		RespondInternal(ctx, "failed to load account", err)
		return
	}

	ctx.JSON(http.StatusOK, adminView(a))
}

func (h *AdminAccountsHandler) Create(ctx *gin.Context) {
	caller, ok := middlewares.AccountFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil)
		return
	}

	var req AdminCreateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Password1 != req.Password2 {
		RespondError(ctx, http.StatusBadRequest, "password_mismatch", "The two password fields didn't match.",
			gin.H{"fields": []FieldError{{Field: "password2", Rule: "eqfield", Param: "password1", Message: "The two password fields didn't match."}}})
		return
	}

	if (req.IsStaff || req.IsSuperuser) && !caller.IsSuperuser {
		RespondForbidden(ctx, "Only superusers may grant staff or superuser status.")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), userOpTimeout)
	defer cancel()

	a, err := h.accounts.CreateUser(cctx, req.Email, req.Password1, accounts.Extra{
		Name:        req.Name,
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	})

	if err != nil {
		respondAccountWriteError(ctx, err, "failed to create account")
		return
	}

	h.prom.IncCreated("admin")

	ctx.JSON(http.StatusCreated, adminView(a))
}

func (h *AdminAccountsHandler) Update(ctx *gin.Context) {
	caller, ok := middlewares.AccountFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.", nil)
		return
	}

	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req AdminUpdateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if (req.IsStaff != nil || req.IsSuperuser != nil) && !caller.IsSuperuser {
		RespondForbidden(ctx, "Only superusers may change staff or superuser status.")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), userOpTimeout)
	defer cancel()

	target, err := h.accounts.Get(cctx, id)

	if errors.Is(err, account.ErrNotFound) {
		RespondNotFound(ctx, "Account not found.")
		return
	}
	if err != nil {
		RespondInternal(ctx, "failed to load account", err)
		return
	}

	if !canEdit(caller, target) {
		RespondForbidden(ctx, "Only superusers may edit staff or superuser accounts.")
		return
	}

	a, err := h.accounts.AdminUpdate(cctx, id, accounts.AdminUpdate{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		IsActive:    req.IsActive,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	})

	if err != nil {
		respondAccountWriteError(ctx, err, "failed to update account")
		return
	}

	ctx.JSON(http.StatusOK, adminView(a))
}

// canEdit keeps non-superuser staff to plain accounts and their own.
func canEdit(caller, target account.Account) bool {
	if caller.IsSuperuser || caller.ID == target.ID {
		return true
	}

	return !target.IsStaff && !target.IsSuperuser
}

func pathID(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil || id < 1 {
		RespondBadRequest(ctx, "id must be a positive integer", gin.H{"id": ctx.Param("id")})
		return 0, false
	}

	return id, true
}

func queryInt(ctx *gin.Context, key string, fallback int) (int, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		RespondBadRequest(ctx, key+" must be an integer", gin.H{key: raw})
		return 0, false
	}

	return v, true
}
