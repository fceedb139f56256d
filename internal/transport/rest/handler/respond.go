package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/service"
)

var validate = validator.New()

// decode reads a JSON body and checks its validate tags
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			fields := make([]string, len(ves))
			for i, fe := range ves {
				fields[i] = fe.Field() + " " + fe.Tag()
			}
			return errors.New("invalid request: " + strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// expectedVersion reads the caller's survey version from If-Match or ?version=
func expectedVersion(r *http.Request) (int64, bool) {
	raw := strings.Trim(r.Header.Get("If-Match"), `"`)
	if raw == "" {
		raw = r.URL.Query().Get("version")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// writeServiceError maps service errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSurveyNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSurveyDeleted),
		errors.Is(err, service.ErrSurveyExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrVersionConflict),
		errors.Is(err, service.ErrSurveyNotPublished),
		errors.Is(err, service.ErrSurveyNotOpen),
		errors.Is(err, service.ErrResponseLimitReached),
		errors.Is(err, service.ErrQuestionLocked),
		errors.Is(err, service.ErrSessionFinished),
		errors.Is(err, service.ErrSessionTimedOut),
		errors.Is(err, service.ErrNotCurrentQuestion),
		errors.Is(err, cache.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidSurvey),
		errors.Is(err, service.ErrInvalidAnswer),
		errors.Is(err, service.ErrGenerationDisabled):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ai.ErrUpstream):
		writeError(w, http.StatusBadGateway, "ai provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
