package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStripMarkdownSQL(t *testing.T) {
	got := stripMarkdownSQL("```sql\nSELECT 1;\n```")
	if got != "SELECT 1;" {
		t.Fatalf("stripMarkdownSQL() = %q", got)
	}
}

func TestBuildMessagesUsesFixedPrompt(t *testing.T) {
	messages := BuildMessages("show all customers")
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "You are a data analyst skilled in writing BigQuery SQL queries." {
		t.Fatalf("system message = %+v", messages[0])
	}
	if messages[1].Role != "user" || messages[1].Content != "Generate a BigQuery SQL query for: show all customers" {
		t.Fatalf("user message = %+v", messages[1])
	}
}

func TestTranslateSendsChatCompletionRequest(t *testing.T) {
	var gotAuth string
	var payload struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  SELECT * FROM sales.customers  \n"}}]}`))
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{Question: "show all customers"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.SQL != "SELECT * FROM sales.customers" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Model != "gpt-4" || payload.Model != "gpt-4" {
		t.Fatalf("model result=%q payload=%q", result.Model, payload.Model)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if len(payload.Messages) != 2 || payload.Messages[1].Content != "Generate a BigQuery SQL query for: show all customers" {
		t.Fatalf("messages = %+v", payload.Messages)
	}
}

func TestTranslateAuthFailureIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL})
	_, err := translator.Translate(context.Background(), Request{Question: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTransient) {
		t.Fatalf("401 should not be transient: %v", err)
	}
	if !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("error = %v", err)
	}
}

func TestTranslateRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := translator.Translate(context.Background(), Request{Question: "x"})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestTranslateNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: url, APIKey: "k", Timeout: time.Second})
	_, err := translator.Translate(context.Background(), Request{Question: "x"})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
}

func TestTranslateRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	if _, err := translator.Translate(context.Background(), Request{Question: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestTranslateRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	translator, _ := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := translator.Translate(context.Background(), Request{Question: "x"})
	if err == nil || !strings.Contains(err.Error(), "decode chat completion response") {
		t.Fatalf("error = %v", err)
	}
}

func TestNewOpenAITranslatorRequiresBaseURL(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
