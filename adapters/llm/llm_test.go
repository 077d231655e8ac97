package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"csvinsight/internal/config"
	apperrors "csvinsight/internal/errors"
)

func testConfig(provider, baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider:    provider,
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     baseURL,
		Temperature: 0.2,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
		RetryMax:    2,
	}
}

func fastRetries(t *transport) {
	t.baseDelay = time.Millisecond
	t.maxDelay = 5 * time.Millisecond
}

const geminiOK = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "{\"a\":"}, {"text": " 1}"}]},
    "finishReason": "STOP"
  }],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
}`

func TestGeminiGenerateSendsJSONModeRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiOK))
	}))
	defer srv.Close()

	client := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL))
	resp, err := client.Generate(context.Background(), "hola")
	require.NoError(t, err)

	assert.Equal(t, "/models/test-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	body := gjson.ParseBytes(gotBody)
	assert.Equal(t, "hola", body.Get("contents.0.parts.0.text").String())
	assert.Equal(t, "application/json", body.Get("generationConfig.responseMimeType").String())
	assert.Equal(t, int64(256), body.Get("generationConfig.maxOutputTokens").Int())

	assert.Equal(t, `{"a": 1}`, resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
	assert.Equal(t, config.ProviderGemini, resp.Usage.Provider)
}

func TestGeminiEmptyCandidateReportsFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"SAFETY"}]}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL)).Generate(context.Background(), "x")
	var empty *EmptyResponseError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "SAFETY", empty.FinishReason)
}

func TestGeminiBlockedPromptUsesBlockReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"OTHER"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL)).Generate(context.Background(), "x")
	var empty *EmptyResponseError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "OTHER", empty.FinishReason)
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(geminiOK))
	}))
	defer srv.Close()

	client := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL))
	fastRetries(client.transport)

	resp, err := client.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, resp.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGivesUpAfterRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL))
	fastRetries(client.transport)

	_, err := client.Generate(context.Background(), "x")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			var ae *AuthError
			assert.ErrorAs(t, err, &ae)
		}},
		{"bad request", http.StatusBadRequest, func(t *testing.T, err error) {
			var be *BadRequestError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "INVALID_ARGUMENT", be.Status)
			assert.Equal(t, "bad model", be.Message)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"bad model","status":"INVALID_ARGUMENT"}}`))
			}))
			defer srv.Close()

			client := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL))
			fastRetries(client.transport)

			_, err := client.Generate(context.Background(), "x")
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestRateLimitHonoursRetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"7"}}}
	err := classifyAPIError("gemini", resp, []byte("slow down"))

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.Equal(t, "slow down", rl.Message)

	tr := newTransport("gemini", time.Second, 1)
	assert.Equal(t, 7*time.Second, tr.backoff(1, err))
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewGeminiClient(testConfig(config.ProviderGemini, srv.URL))
	client.transport.baseDelay = time.Hour
	client.transport.maxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIGenerateUsesJSONObjectFormat(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{
			"model": "gpt-test-2024",
			"choices": [{"message": {"role": "assistant", "content": "{\"ok\": true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIClient(testConfig(config.ProviderOpenAI, srv.URL+"/")).Generate(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	body := gjson.ParseBytes(gotBody)
	assert.Equal(t, "json_object", body.Get("response_format.type").String())
	assert.Equal(t, "prompt", body.Get("messages.1.content").String())

	assert.Equal(t, `{"ok": true}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-test-2024", resp.Usage.Model)
}

func TestOpenAIMissingChoices(t *testing.T) {
	_, err := parseChatResponse("m", []byte(`{"choices": []}`))
	assert.EqualError(t, err, "openai response missing choices")

	_, err = parseChatResponse("m", []byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
	var empty *EmptyResponseError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "length", empty.FinishReason)
}

func TestNewSelectsProvider(t *testing.T) {
	gen, err := New(testConfig(config.ProviderGemini, ""))
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, gen)
	assert.Equal(t, defaultGeminiBaseURL, gen.(*GeminiClient).BaseURL)

	gen, err = New(testConfig(config.ProviderOpenAI, ""))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, gen)

	gen, err = New(config.LLMConfig{Provider: config.ProviderMock})
	require.NoError(t, err)
	assert.IsType(t, &MockGenerator{}, gen)

	_, err = New(config.LLMConfig{Provider: config.ProviderGemini})
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))

	_, err = New(config.LLMConfig{Provider: "claude"})
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestMockGenerator(t *testing.T) {
	m := &MockGenerator{}
	resp, err := m.Generate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "observaciones")

	m.Error = errors.New("boom")
	_, err = m.Generate(context.Background(), "p2")
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"p1", "p2"}, m.Prompts())
}

func TestParseRetryAfterSeconds(t *testing.T) {
	secs, err := parseRetryAfterSeconds("12")
	require.NoError(t, err)
	assert.Equal(t, 12, secs)

	secs, err = parseRetryAfterSeconds(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	require.NoError(t, err)
	assert.Equal(t, 0, secs)

	_, err = parseRetryAfterSeconds("soon")
	assert.Error(t, err)
}

func TestWithJitterStaysInBand(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := withJitter(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.Less(t, d, 1200*time.Millisecond)
	}
}
