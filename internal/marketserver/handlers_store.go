package marketserver

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mintbay/gomart/pkg/contentstore"
)

const maxBlobSize = 8 << 20 // 8 MiB

// handleStoreAdd accepts an opaque blob and returns its content id and
// URI. The marketplace never interprets the blob; clients put their
// {name, description, image} metadata JSON here and mint with the URI.
func (s *Server) handleStoreAdd(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "content store not configured")
		return
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBlobSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if len(blob) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}
	if len(blob) > maxBlobSize {
		writeError(w, http.StatusRequestEntityTooLarge, "blob too large")
		return
	}
	cid, err := s.store.Add(blob)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"cid": cid,
		"uri": contentstore.URI(cid),
	})
}

func (s *Server) handleStoreGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "content store not configured")
		return
	}
	cid := strings.TrimSpace(urlParam(r, "cid"))
	if cid == "" {
		writeError(w, http.StatusBadRequest, "cid is required")
		return
	}
	blob, err := s.store.Get(cid)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blob not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}
