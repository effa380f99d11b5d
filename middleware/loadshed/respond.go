package loadshed

import (
	"bytes"
	"encoding/json"
	"net/http"

	"equipment-loans/internal/log"
)

const contentTypeAppJSON = "application/json"

type errorResponse struct {
	Error string `json:"error"`
}

// jsonMarshal sem escape de HTML.
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}, logger log.FieldLogger) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentTypeAppJSON)
	}

	body, err := jsonMarshal(data)
	if err != nil {
		if logger != nil {
			logger.Error("error while marshaling json for response body", log.Error(err))
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string, logger log.FieldLogger) {
	respondJSON(w, status, errorResponse{Error: msg}, logger)
}
