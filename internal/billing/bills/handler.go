package bills

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborbooks/harborbooks/internal/billing/attachments"
	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
	"github.com/harborbooks/harborbooks/internal/platform/httpx"
	"github.com/harborbooks/harborbooks/internal/shared"
)

// AttachmentLister is the slice of the attachment service the bill view needs.
type AttachmentLister interface {
	ListForEntity(ctx context.Context, userID int64, entityType attachments.EntityType, entityID int64) ([]attachments.Attachment, error)
}

// Handler exposes bill endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	attachments AttachmentLister
	validate    *validator.Validate
}

// NewHandler constructs the bills handler.
func NewHandler(logger *slog.Logger, service *Service, lister AttachmentLister) *Handler {
	return &Handler{logger: logger, service: service, attachments: lister, validate: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	out, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": out})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bill id must be numeric")
		return
	}
	includeLines := r.URL.Query().Get("include_lines") != "false"
	includePayments := r.URL.Query().Get("include_payments") != "false"
	bill, err := h.service.Get(r.Context(), userID, id, includeLines, includePayments)
	if err != nil {
		h.respondError(w, "get bill", err)
		return
	}
	if r.URL.Query().Get("include_attachments") == "true" && h.attachments != nil {
		bill.Attachments, err = h.attachments.ListForEntity(r.Context(), userID, attachments.EntityBill, bill.ID)
		if err != nil {
			h.respondError(w, "list bill attachments", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		h.respondError(w, "create bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bill id must be numeric")
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.Update(r.Context(), userID, id, input)
	if err != nil {
		h.respondError(w, "update bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bill id must be numeric")
		return
	}
	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bill, err := h.service.UpdateStatus(r.Context(), userID, id, input.Status)
	if err != nil {
		h.respondError(w, "update bill status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	var input BulkStatusInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.BulkUpdateStatus(r.Context(), userID, input)
	if err != nil {
		h.respondError(w, "bulk bill status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBillNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotDraft),
		errors.Is(err, ledger.ErrUnbalanced):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violated", err.Error())
	case errors.Is(err, ledger.ErrAccountResolution):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Account Resolution Failed", err.Error())
	case errors.Is(err, ErrLineInconsistent), errors.Is(err, ledger.ErrNoLines):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
