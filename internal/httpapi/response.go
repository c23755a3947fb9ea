package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	svcErr "github.com/oggyb/agentmatch/internal/errors"
	"github.com/oggyb/agentmatch/internal/logger"
)

// errorBody is the envelope for every failed request.
type errorBody struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	Code              string `json:"code"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ok writes a success envelope: body's fields are merged next to "success".
func ok(w http.ResponseWriter, status int, body map[string]any) {
	if body == nil {
		body = map[string]any{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// fail renders err through the service error taxonomy.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := svcErr.HTTPStatus(err)
	e, isSvc := svcErr.As(svcErr.Map(err))

	body := errorBody{Error: http.StatusText(status), Code: svcErr.CodeDependency}
	if isSvc {
		body.Code = e.Code
		if status < http.StatusInternalServerError {
			body.Error = e.Message
		}
		if e.Kind == svcErr.KindRateLimited {
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(e.RetryAfter.Seconds())))
		}
	}

	log := logger.FromContext(r.Context(), slog.Default())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Debug("request rejected", "status", status, "code", body.Code, "err", err)
	}
	writeJSON(w, status, body)
}

func retrySeconds(s float64) int {
	return max(1, int(math.Ceil(s)))
}

const maxBodyBytes = 1 << 20

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			return svcErr.InvalidArgument("malformed JSON body")
		}
		return svcErr.InvalidArgument("invalid request body")
	}
	return nil
}
