package attachments

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{entityType}/{entityID}/attachments", h.List)
	r.Post("/{entityType}/{entityID}/attachments", h.Create)
	r.Delete("/attachments/{attachmentID}", h.Delete)
}
