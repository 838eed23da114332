package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"name": "test"}`))
		w := httptest.NewRecorder()
		var dest map[string]string

		ok := ParseJSONOrError(w, req, &dest)

		assert.True(t, ok)
	})

	t.Run("invalid JSON writes 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{invalid}`))
		w := httptest.NewRecorder()
		var dest map[string]string

		ok := ParseJSONOrError(w, req, &dest)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		key         string
		expectVal   int64
		expectError bool
	}{
		{
			name:      "valid int64",
			vars:      map[string]string{"community_id": "9223372036854775807"},
			key:       "community_id",
			expectVal: 9223372036854775807,
		},
		{
			name:        "missing parameter",
			vars:        map[string]string{},
			key:         "community_id",
			expectError: true,
		},
		{
			name:        "non-numeric parameter",
			vars:        map[string]string{"community_id": "abc"},
			key:         "community_id",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req = mux.SetURLVars(req, tt.vars)

			val, err := ParsePathInt64(req, tt.key)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectVal, val)
			}
		})
	}
}

func TestParsePathInt64OrError(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req = mux.SetURLVars(req, map[string]string{"community_id": "nope"})
	w := httptest.NewRecorder()

	_, ok := ParsePathInt64OrError(w, req, "community_id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?status=done", nil)

	assert.Equal(t, "done", ParseQueryString(req, "status", ""))
	assert.Equal(t, "todo", ParseQueryString(req, "missing", "todo"))
}
