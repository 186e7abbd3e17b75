package media

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

// Handler serves GET /static/images/{filename}.
type Handler struct {
	source Source
	logger *logging.Logger
}

// NewHandler wraps a source for HTTP.
func NewHandler(source Source, logger *logging.Logger) *Handler {
	if source == nil {
		panic("media: source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{source: source, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	obj, err := h.source.Open(r.Context(), name)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidName):
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("failed to open image", "filename", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("image write interrupted", "filename", name, "error", err)
	}
}
