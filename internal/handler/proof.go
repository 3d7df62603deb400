package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/dukerupert/chorechart/internal/proof"
)

// ProofHandler accepts proof photos before a completion is submitted.
type ProofHandler struct {
	storage proof.Storage
	logger  *slog.Logger
}

func NewProofHandler(storage proof.Storage, logger *slog.Logger) *ProofHandler {
	return &ProofHandler{storage: storage, logger: logger}
}

// Upload handles POST /api/proofs. The photo is either the raw body or the
// "photo" field of a multipart form. The response data carries the path to
// pass to the complete call.
func (h *ProofHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for multipart framing around a maximum size photo.
	r.Body = http.MaxBytesReader(w, r.Body, proof.MaxSize+64<<10)

	src, err := photoReader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer src.Close()

	data, err := proof.ReadJPEG(src)
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, proof.ErrNotJPEG):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, proof.ErrTooLarge), errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, proof.ErrTooLarge.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	path, err := h.storage.Save(r.Context(), bytes.NewReader(data))
	if err != nil {
		h.logger.Error("save proof", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	h.logger.Info("proof saved", "path", path, "bytes", len(data))
	writeOK(w, http.StatusCreated, "Photo uploaded", map[string]string{"path": path})
}

func photoReader(r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.New("invalid multipart form")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("photo is required")
		}
		if err != nil {
			return nil, errors.New("invalid multipart form")
		}
		if part.FormName() == "photo" {
			return part, nil
		}
		part.Close()
	}
}
