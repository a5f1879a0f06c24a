package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// errorBody mirrors httputil.Response so middleware rejections look the same
// as handler errors.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAppError(w http.ResponseWriter, err *apperrors.AppError) {
	writeJSONError(w, err.Status, err.Code, err.Message)
}
