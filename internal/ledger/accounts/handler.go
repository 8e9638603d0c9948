package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	"github.com/harborbooks/harborbooks/internal/platform/httpx"
	"github.com/harborbooks/harborbooks/internal/shared"
)

// Handler exposes chart-of-accounts endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Delete("/{id}", h.Deactivate)
}

type createAccountRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Type string `json:"type" validate:"required"`
	Code int    `json:"code" validate:"gte=0"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be numeric")
		return
	}
	acct, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	typ := AccountType(strings.ToUpper(req.Type))
	if !typ.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "type must be one of asset, liability, equity, revenue, expense")
		return
	}
	acct, err := h.service.Create(r.Context(), userID, req.Name, typ, req.Code)
	if err != nil {
		if errors.Is(err, ledger.ErrCodeTaken) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.logger.Error("create account", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be numeric")
		return
	}
	if err := h.service.Deactivate(r.Context(), userID, id); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("deactivate account", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
