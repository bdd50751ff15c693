package generativeai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingTransportInjectsKey(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-goog-api-key")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := &http.Client{Transport: &loggingTransport{base: http.DefaultTransport, apiKey: "secret"}}
	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "secret", got)
}

func TestLoggingTransportKeepsQueryKey(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-goog-api-key")
	}))
	defer ts.Close()

	client := &http.Client{Transport: &loggingTransport{base: http.DefaultTransport, apiKey: "secret"}}
	resp, err := client.Get(ts.URL + "?key=other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, got)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "x-goog-api-key: REDACTED", redactKey("x-goog-api-key: secret", "secret"))
	assert.Equal(t, "unchanged", redactKey("unchanged", ""))
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("hello "), genai.Text("world")}}},
		},
	}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = responseText(&genai.GenerateContentResponse{})
	require.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	require.Error(t, err)
}
