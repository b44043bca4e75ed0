package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sanduabey/zen/pkg/provider/llm"
	"github.com/sanduabey/zen/pkg/types"
)

// ── convertMessage ────────────────────────────────────────────────────────────

func TestConvertMessage_Roles(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleSystem, anyllmlib.RoleSystem},
		{types.RoleUser, anyllmlib.RoleUser},
		{types.RoleAssistant, anyllmlib.RoleAssistant},
	}
	for _, tt := range tests {
		msg := convertMessage(types.Message{Role: tt.role, Content: "hi"})
		if msg.Role != tt.want {
			t.Errorf("role %q: expected %q, got %q", tt.role, tt.want, msg.Role)
		}
		if msg.ContentString() != "hi" {
			t.Errorf("role %q: expected content %q, got %q", tt.role, "hi", msg.ContentString())
		}
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptAndLimits(t *testing.T) {
	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be concise.",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "Hello"},
			{Role: types.RoleAssistant, Content: "Hi!"},
			{Role: types.RoleUser, Content: "Weather?"},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})

	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("expected model, got %q", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("expected system message first, got %q", params.Messages[0].Role)
	}
	if params.Messages[3].ContentString() != "Weather?" {
		t.Errorf("expected last message to be the latest utterance, got %q", params.Messages[3].ContentString())
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 150 {
		t.Errorf("expected max tokens 150, got %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "llama3"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "Hi"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message without system prompt, got %d", len(params.Messages))
	}
	if params.Temperature != nil {
		t.Error("expected nil temperature")
	}
	if params.MaxTokens != nil {
		t.Error("expected nil max tokens")
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model         string
		contextWindow int
		maxOutput     int
		systemPrompt  bool
	}{
		{"gpt-4o-mini", 128_000, 16_384, true},
		{"gpt-4", 8_192, 4_096, true},
		{"gpt-3.5-turbo", 16_385, 4_096, true},
		{"o1-mini", 128_000, 65_536, false},
		{"claude-3-opus-20240229", 200_000, 4_096, true},
		{"claude-3-5-haiku-latest", 200_000, 8_192, true},
		{"gemini-1.5-pro", 2_097_152, 8_192, true},
		{"gemini-2.0-flash", 1_048_576, 8_192, true},
		{"llama3", 128_000, 4_096, true},
		{"GPT-4O", 128_000, 16_384, true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.contextWindow {
				t.Errorf("expected context window %d, got %d", tt.contextWindow, caps.ContextWindow)
			}
			if caps.MaxOutputTokens != tt.maxOutput {
				t.Errorf("expected max output %d, got %d", tt.maxOutput, caps.MaxOutputTokens)
			}
			if caps.SupportsSystemPrompt != tt.systemPrompt {
				t.Errorf("expected SupportsSystemPrompt=%v", tt.systemPrompt)
			}
		})
	}
}

// ── New ───────────────────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_MissingAPIKey relies on OPENAI_API_KEY not being set.
func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name  string
		model string
		opts  []anyllmlib.Option
	}{
		{"openai", "gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")}},
		{"anthropic", "claude-3-5-haiku-latest", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")}},
		{"ollama", "llama3", nil},
		{"llamacpp", "llama3", nil},
		{"llamafile", "llama3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.name, tt.model, tt.opts...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.model != tt.model {
				t.Errorf("expected model %q, got %q", tt.model, p.model)
			}
			if p.Capabilities().ContextWindow == 0 {
				t.Error("expected non-zero capabilities")
			}
		})
	}
}
