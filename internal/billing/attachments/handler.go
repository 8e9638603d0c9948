package attachments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harborbooks/harborbooks/internal/platform/httpx"
	"github.com/harborbooks/harborbooks/internal/shared"
)

const maxUploadBytes = 25 << 20

// Handler exposes attachment endpoints, mounted under the owning entity:
// /{entity_type}/{entity_id}/attachments.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the attachments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	entityType, entityID, err := parseEntity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out, err := h.service.ListForEntity(r.Context(), userID, entityType, entityID)
	if err != nil {
		h.logger.Error("list attachments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attachments": out})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	entityType, entityID, err := parseEntity(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "file field required")
		return
	}
	defer file.Close()

	attachment, err := h.service.Attach(r.Context(), userID, entityType, entityID,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("create attachment", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, attachment)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "attachmentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "attachment id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, ErrAttachmentNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("delete attachment", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseEntity(r *http.Request) (EntityType, int64, error) {
	entityType, err := ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		return "", 0, err
	}
	entityID, err := strconv.ParseInt(chi.URLParam(r, "entityID"), 10, 64)
	if err != nil {
		return "", 0, errors.New("entity id must be numeric")
	}
	return entityType, entityID, nil
}
