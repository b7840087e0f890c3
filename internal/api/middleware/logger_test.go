// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogger_Success(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf).Level(zerolog.TraceLevel)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"dune"}`))
	req.Header.Set("User-Agent", "TestClient/1.0")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, `"type":"access"`)
	assert.Contains(t, logOutput, `"url":"/api/search"`)
	assert.Contains(t, logOutput, `"method":"POST"`)
	assert.Contains(t, logOutput, `"status":200`)
	assert.Contains(t, logOutput, "latency_ms")
	assert.Contains(t, logOutput, `"bytes_in":16`)
	assert.Contains(t, logOutput, `"bytes_out":7`)
	assert.Contains(t, logOutput, "TestClient/1.0")
}

func TestLogger_StatusCodes(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		var logBuf bytes.Buffer
		logger := zerolog.New(&logBuf).Level(zerolog.TraceLevel)

		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, status, rec.Code)
	}
}

func TestLogger_PanicRecovery(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf).Level(zerolog.TraceLevel)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	logOutput := logBuf.String()
	assert.Contains(t, logOutput, `"type":"error"`)
	assert.Contains(t, logOutput, "test panic")
}

func TestChiMiddlewareExports(t *testing.T) {
	assert.NotNil(t, RequestID)
	assert.NotNil(t, Recoverer)
	assert.NotNil(t, RealIP)
}
