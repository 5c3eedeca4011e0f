package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// mockBedrockClient implements bedrockClient for testing
type mockBedrockClient struct {
	invokeFunc func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

func (m *mockBedrockClient) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	return m.invokeFunc(ctx, params, optFns...)
}

func newTestBedrockService(client bedrockClient) *BedrockService {
	return &BedrockService{
		client:           client,
		model:            "test-model",
		maxTokens:        650,
		temperature:      0.4,
		anthropicVersion: bedrockAnthropicVersion,
	}
}

func bedrockReturning(body string) *mockBedrockClient {
	return &mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}, nil
		},
	}
}

func TestBedrockNarrate_Success(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var sent ClaudeRequest
	var modelID string
	mockClient := &mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			modelID = *params.ModelId
			if err := json.Unmarshal(params.Body, &sent); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{
				"id": "msg_123",
				"type": "message",
				"role": "assistant",
				"content": [{"type": "text", "text": "Paper funds fell "}, {"type": "text", "text": "with the CDI."}],
				"stop_reason": "end_turn"
			}`)}, nil
		},
	}

	service := newTestBedrockService(mockClient)
	result, err := service.Narrate(context.Background(), "You are an analyst", "Explain today")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Paper funds fell with the CDI." {
		t.Errorf("unexpected narrative %q", result)
	}
	if modelID != "test-model" || service.Model() != "test-model" {
		t.Errorf("unexpected model %s", modelID)
	}
	if sent.AnthropicVersion != bedrockAnthropicVersion || sent.MaxTokens != 650 || sent.Temperature != 0.4 {
		t.Errorf("unexpected request %+v", sent)
	}
	if sent.System != "You are an analyst" || len(sent.Messages) != 1 || sent.Messages[0].Role != "user" {
		t.Errorf("unexpected messages %+v", sent)
	}
}

func TestBedrockNarrate_APIError(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	mockClient := &mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			return nil, errors.New("AccessDeniedException")
		},
	}

	_, err := newTestBedrockService(mockClient).Narrate(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to invoke model") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestBedrockNarrate_InvalidJSON(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	_, err := newTestBedrockService(bedrockReturning("not json")).Narrate(context.Background(), "system", "user")
	if err == nil || !strings.Contains(err.Error(), "failed to unmarshal response") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBedrockNarrate_EmptyContent(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	tests := []string{
		`{"content": []}`,
		`{"content": [{"type": "tool_use", "text": ""}]}`,
	}
	for _, body := range tests {
		_, err := newTestBedrockService(bedrockReturning(body)).Narrate(context.Background(), "system", "user")
		if err == nil || !strings.Contains(err.Error(), "empty response from model") {
			t.Errorf("body %s: unexpected error %v", body, err)
		}
	}
}

func TestClaudeRequest_EmptySystemOmitted(t *testing.T) {
	data, err := json.Marshal(ClaudeRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        100,
		Messages:         []ClaudeMessage{{Role: "user", Content: "Test"}},
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"system"`) {
		t.Errorf("empty system field should be omitted: %s", data)
	}
}
