package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with {"error","code","details"} and the status for the
// error's code. Errors outside the taxonomy become INTERNAL; internal causes
// are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal error", err)
	}
	if appErr.Code == apperrors.CodeInternal {
		log.WithError(err).WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": chimw.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeJSON(w, appErr.HTTPStatus(), appErr)
}

// decodeJSON decodes a request body strictly: unknown fields and trailing
// data are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.InvalidInput("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperrors.InvalidInput("invalid json: %v", err)
	}
	if dec.More() {
		return apperrors.InvalidInput("invalid json: unexpected data after body")
	}
	return nil
}
