// Package httpapi assembles the chi router exposing the echo content
// pipeline and the chunked upload protocol over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pk5ls20/echo/gladiator"
	"github.com/pk5ls20/echo/upload"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeAPIError inspects err's chain and picks a status code. errors.As
// walks Unwrap, so a *upload.TrackerError wrapping a *upload.ConsistencyError
// is matched by the consErr case directly without unwrapping by hand.
func writeAPIError(w http.ResponseWriter, err error) {
	var (
		checkErr *gladiator.IncomingCheckError
		extErr   *gladiator.ExtensionError
		protoErr *upload.ProtocolError
		consErr  *upload.ConsistencyError
	)
	switch {
	case errors.As(err, &checkErr), errors.As(err, &extErr):
		writeError(w, http.StatusForbidden, err)
	case errors.As(err, &protoErr), errors.As(err, &consErr):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
