package httpapi

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_RegistersExpectedRoutes(t *testing.T) {
	router, ok := NewServer(nil, nil, nil).Router().(chi.Routes)
	require.True(t, ok)

	registered := make(map[string]bool)
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[method+" "+route] = true
		return nil
	})
	require.NoError(t, err)

	want := []string{
		"POST /api/sessions/",
		"POST /api/sessions/{id}/queries",
		"GET /api/sessions/{id}/history",
		"GET /api/queries/popular",
		"POST /api/queries/{id}/feedback",
		"POST /api/suggestions",
		"GET /api/documents/{id}/file",
		"DELETE /api/documents/{id}/attachment",
		"GET /api/stats/overview",
	}
	for _, route := range want {
		assert.True(t, registered[route], "missing route %s", route)
	}

	assert.False(t, registered["DELETE /api/documents/{id}/file"])
}
