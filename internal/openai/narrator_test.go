package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() NarrationInput {
	return NarrationInput{
		Symbol:            "aapl",
		Amount:            decimal.NewFromInt(1000),
		StartYear:         2019,
		FinalValue:        decimal.RequireFromString("4120.55"),
		HorizonDays:       365,
		Scenarios:         1000,
		Mean:              decimal.RequireFromString("5100"),
		Median:            decimal.RequireFromString("4900"),
		Lower:             decimal.RequireFromString("3000"),
		Upper:             decimal.RequireFromString("8000"),
		PercentileLevel:   0.05,
		ProbabilityOfLoss: 0.231,
		AnnualDrift:       0.21,
		AnnualVolatility:  0.3,
	}
}

func TestNarrationPrompt(t *testing.T) {
	p := narrationPrompt(sampleInput())
	assert.Contains(t, p, "Symbol: AAPL")
	assert.Contains(t, p, "Invested: 1000.00 at the start of 2019")
	assert.Contains(t, p, "Value today: 4120.55")
	assert.Contains(t, p, "P5: 3000.00, P95: 8000.00")
	assert.Contains(t, p, "23.1%")
}

func TestNarrator_Narrate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Your holding grew.  "}}]}`)
	}))
	defer srv.Close()

	n := NewNarrator("test-key", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	out, err := n.Narrate(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "Your holding grew.", out)
	assert.Equal(t, "gpt-4", body["model"])
}

func TestNarrator_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4","choices":[]}`)
	}))
	defer srv.Close()

	n := NewNarrator("k", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := n.Narrate(context.Background(), sampleInput())
	assert.EqualError(t, err, "no response from OpenAI")
}

func TestNarrator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	n := NewNarrator("k", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := n.Narrate(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI API error")
}
