package effector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPLanguageModel_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(completionResponse{Content: "patched", TokensUsed: 42})
	}))
	defer srv.Close()

	require.NoError(t, os.Setenv("STIGCTL_TEST_LLM_KEY", "test-key"))
	defer func() { _ = os.Unsetenv("STIGCTL_TEST_LLM_KEY") }()

	m := NewHTTPLanguageModel(srv.URL, "test-model", "STIGCTL_TEST_LLM_KEY")
	res, err := m.Generate(context.Background(), Generation{Prompt: "migrate this"})
	require.NoError(t, err)
	require.Equal(t, "patched", res.Patch)
	require.Equal(t, int64(42), res.TokensUsed)
}

func TestHTTPLanguageModel_Generate_MissingCredential(t *testing.T) {
	require.NoError(t, os.Unsetenv("STIGCTL_TEST_LLM_KEY_MISSING"))
	m := NewHTTPLanguageModel("http://example.invalid", "test-model", "STIGCTL_TEST_LLM_KEY_MISSING")
	_, err := m.Generate(context.Background(), Generation{Prompt: "x"})
	require.Error(t, err)
}

func TestHTTPLanguageModel_RetriesOn5xx(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(completionResponse{Content: "ok"})
	}))
	defer srv.Close()

	require.NoError(t, os.Setenv("STIGCTL_TEST_LLM_KEY2", "k"))
	defer func() { _ = os.Unsetenv("STIGCTL_TEST_LLM_KEY2") }()

	m := NewHTTPLanguageModel(srv.URL, "test-model", "STIGCTL_TEST_LLM_KEY2")
	m.MaxRetries = 5
	res, err := m.Generate(context.Background(), Generation{Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Patch)
	require.Equal(t, 3, calls)
}
