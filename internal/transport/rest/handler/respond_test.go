package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/service"
)

func TestWriteServiceError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrSurveyNotFound, http.StatusNotFound},
		{service.ErrSessionNotFound, http.StatusNotFound},
		{service.ErrQuestionNotFound, http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrSurveyDeleted, http.StatusGone},
		{service.ErrSurveyExpired, http.StatusGone},
		{service.ErrSurveyNotOpen, http.StatusConflict},
		{service.ErrResponseLimitReached, http.StatusConflict},
		{fmt.Errorf("%w: Q1", service.ErrQuestionLocked), http.StatusConflict},
		{service.ErrSessionTimedOut, http.StatusConflict},
		{&service.AnswerError{QuestionID: "Q2", Problems: []string{"an answer is required"}}, http.StatusUnprocessableEntity},
		{service.ErrVersionConflict, http.StatusConflict},
		{service.ErrSurveyNotPublished, http.StatusConflict},
		{service.ErrSessionFinished, http.StatusConflict},
		{service.ErrNotCurrentQuestion, http.StatusConflict},
		{cache.ErrSessionBusy, http.StatusConflict},
		{fmt.Errorf("%w: dangling rule", service.ErrInvalidSurvey), http.StatusUnprocessableEntity},
		{service.ErrGenerationDisabled, http.StatusUnprocessableEntity},
		{fmt.Errorf("generate: %w", ai.ErrUpstream), http.StatusBadGateway},
		{errors.New("mongo went away"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("dial tcp 10.0.0.3:27017: refused"))
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestExpectedVersion(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/v1/surveys/s1", nil)
	_, ok := expectedVersion(r)
	assert.False(t, ok)

	r.Header.Set("If-Match", `"4"`)
	v, ok := expectedVersion(r)
	require.True(t, ok)
	assert.Equal(t, int64(4), v)

	r = httptest.NewRequest(http.MethodPut, "/v1/surveys/s1?version=7", nil)
	v, ok = expectedVersion(r)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)

	r = httptest.NewRequest(http.MethodPut, "/v1/surveys/s1?version=zero", nil)
	_, ok = expectedVersion(r)
	assert.False(t, ok)
}

func TestDecode_ReportsFailedFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"deleted"}`))
	var req StatusRequest
	err := decode(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status oneof")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	err = decode(r, &req)
	assert.EqualError(t, err, "invalid request body")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"questionIds":["Q2",""]}`))
	var reorder ReorderRequest
	err = decode(r, &reorder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&neg=-2", nil)
	assert.Equal(t, 5, queryInt(r, "limit", 100))
	assert.Equal(t, 100, queryInt(r, "bad", 100))
	assert.Equal(t, 100, queryInt(r, "neg", 100))
	assert.Equal(t, 20, queryInt(r, "missing", 20))
}
