package server

import (
	"errors"
	"mime"
	"net/http"
	"path"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
)

// objectWriter sets the response headers on the first write so a missing
// object can still be answered with an error body.
type objectWriter struct {
	w       http.ResponseWriter
	name    string
	written bool
}

func (o *objectWriter) Write(p []byte) (int, error) {
	if !o.written {
		o.written = true
		ct := mime.TypeByExtension(path.Ext(o.name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		o.w.Header().Set("Content-Type", ct)
		o.w.Header().Set("Cache-Control", "public, max-age=3600")
		o.w.WriteHeader(http.StatusOK)
	}
	return o.w.Write(p)
}

// handleDownload serves public objects at the URLs the object store hands out.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out := &objectWriter{w: w, name: vars["path"]}
	err := s.gw.Storage.Download(r.Context(), vars["bucket"], vars["path"], out)
	if err == nil {
		if !out.written {
			_, _ = out.Write(nil)
		}
		return
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("object download failed",
			zap.String("bucket", vars["bucket"]),
			zap.String("path", vars["path"]),
			zap.Error(err),
		)
	}
	if !out.written {
		s.errs.HandleError(w, r, err)
	}
}
