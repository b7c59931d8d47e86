package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt(t *testing.T) {
	got := Prompt([]Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}})
	assert.Equal(t, "system: be brief\nuser: hi", got)
	assert.Equal(t, "", Prompt(nil))
}

func TestTrimBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com", TrimBaseURL("https://api.example.com///"))
	assert.Equal(t, "http://h:1/v", TrimBaseURL("http://h:1/v"))
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "v", r.Header.Get("X-K"))
		if strings.HasSuffix(r.URL.Path, "/fail") {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	data, err := PostJSON(ctx, srv.Client(), srv.URL+"/ok", map[string]string{"X-K": "v"}, map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	_, err = PostJSON(ctx, srv.Client(), srv.URL+"/fail", map[string]string{"X-K": "v"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se), "error = %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "model overloaded", se.Body)
	assert.Equal(t, "provider: status 503: model overloaded", se.Error())
}
