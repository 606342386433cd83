package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, srv.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestParseHost(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"localhost:11434", "http://localhost:11434"},
		{"http://ollama:11434", "http://ollama:11434"},
		{"https://ollama.example.com", "https://ollama.example.com"},
	}
	for _, tt := range tests {
		u, err := parseHost(tt.host)
		if err != nil {
			t.Fatalf("parseHost(%q) failed: %v", tt.host, err)
		}
		if u.String() != tt.expected {
			t.Errorf("parseHost(%q) = %q, want %q", tt.host, u.String(), tt.expected)
		}
	}
}

func TestInvokeStructured(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","created_at":"2024-01-01T00:00:00Z","message":{"role":"assistant","content":"{\"city\":\"Paris\"}"},"done":true}`)
	})

	schema := llm.OutputSchema{Name: "extract_city", Schema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)}
	opts := llm.BuildCallOptions(
		llm.ProviderConfig{Name: llm.ProviderOllama, Model: "llama3"},
		&llm.CallOverrides{Temperature: llm.Float(0.1), StopSequences: []string{"\n\n"}},
		&schema,
	)

	comp, err := c.Invoke(context.Background(), llm.TextPrompt("capital of France?"), opts)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if string(comp.Data) != `{"city":"Paris"}` {
		t.Errorf("Expected structured data, got %s", comp.Data)
	}

	format, _ := got["format"].(map[string]any)
	if format["type"] != "object" {
		t.Errorf("Expected schema as format, got %v", got["format"])
	}
	options, _ := got["options"].(map[string]any)
	if options["temperature"] != 0.1 {
		t.Errorf("Expected temperature 0.1, got %v", options["temperature"])
	}
	if options["num_predict"] != float64(llm.DefaultOutputReserve) {
		t.Errorf("Expected num_predict %d, got %v", llm.DefaultOutputReserve, options["num_predict"])
	}
	if got["stream"] != false {
		t.Errorf("Expected stream false, got %v", got["stream"])
	}
}

func TestInvokeServerErrorIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"model crashed"}`)
	})

	opts := llm.BuildCallOptions(llm.ProviderConfig{Name: llm.ProviderOllama, Model: "llama3"}, nil, nil)
	_, err := c.Invoke(context.Background(), llm.TextPrompt("hi"), opts)
	perr := llm.ClassifyError(llm.ProviderOllama, err)
	if perr == nil || perr.Kind != llm.ErrorKindAPI {
		t.Fatalf("Expected API_ERROR, got %v", err)
	}
	if perr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", perr.StatusCode)
	}
}

func TestUnauthorizedIsAuthenticationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
	})

	opts := llm.BuildCallOptions(llm.ProviderConfig{Name: llm.ProviderOllama, Model: "llama3"}, nil, nil)
	_, invokeErr := c.Invoke(context.Background(), llm.TextPrompt("hi"), opts)
	_, listErr := c.ListModelIDs(context.Background())

	for name, err := range map[string]error{"invoke": invokeErr, "list": listErr} {
		perr := llm.ClassifyError(llm.ProviderOllama, err)
		if perr == nil || perr.Kind != llm.ErrorKindAuthentication {
			t.Errorf("%s: expected AUTHENTICATION_ERROR, got %v", name, err)
			continue
		}
		if perr.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", name, perr.StatusCode)
		}
	}
}

func TestListModelIDs(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantIDs  []string
		wantKind llm.ErrorKind
	}{
		{"two models", `{"models":[{"name":"llama3:latest","model":"llama3:latest"},{"name":"mistral:7b","model":"mistral:7b"}]}`, []string{"llama3:latest", "mistral:7b"}, ""},
		{"no models", `{"models":[]}`, nil, llm.ErrorKindNoModelsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/tags" {
					t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})

			ids, err := c.ListModelIDs(context.Background())
			if tt.wantKind != "" {
				if !llm.IsKind(err, tt.wantKind) {
					t.Fatalf("Expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("Expected %v, got %v", tt.wantIDs, ids)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Errorf("Expected id %q at %d, got %q", tt.wantIDs[i], i, ids[i])
				}
			}
		})
	}
}

func TestModelContextWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" {
			t.Errorf("Expected path /api/show, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model_info":{"general.architecture":"llama","llama.context_length":8192}}`)
	})

	n, err := c.ModelContextWindow(context.Background(), "llama3")
	if err != nil {
		t.Fatalf("ModelContextWindow failed: %v", err)
	}
	if n != 8192 {
		t.Errorf("Expected 8192, got %d", n)
	}
}
