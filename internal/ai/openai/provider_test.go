package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/resumatch/internal/ai/openai"
	"github.com/kiranshivaraju/resumatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() models.GenerateRequest {
	return models.GenerateRequest{Credential: "sk-test", Model: "gpt-4o", Prompt: "compare these", Temperature: 0.7}
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 0.0001)
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		assert.Equal(t, "compare these", msgs[0].(map[string]any)["content"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"atsScore\":91}"}}]}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL+"/v1/", srv.Client())
	out, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"atsScore":91}`, out)
	assert.Equal(t, "openai", p.Name())
}

func TestGenerate_HTTPErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "20")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"insufficient_quota","message":"You exceeded your current quota"}}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)

	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, 20*time.Second, httpErr.RetryAfter)
	assert.Contains(t, httpErr.Body, "insufficient_quota")
}

func TestGenerate_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(context.Background(), testRequest())

	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Zero(t, httpErr.RetryAfter)
	assert.Equal(t, "HTTP 401", httpErr.Error())
}

func TestGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestGenerate_ErrorObjectIn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"type":"server_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestGenerate_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse openai response")
}

func TestGenerate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := openai.NewProvider(srv.URL, srv.Client())
	_, err := p.Generate(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
