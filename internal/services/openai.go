package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIClient struct {
	APIKey string
	Model  string
	HTTP   *http.Client
}

type chatRequest struct {
	Model        string           `json:"model"`
	Messages     []OpenAIMessage  `json:"messages"`
	Functions    []OpenAIFunction `json:"functions,omitempty"`
	FunctionCall any              `json:"function_call,omitempty"`
	Temperature  float64          `json:"temperature,omitempty"`
}

type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content      string `json:"content"`
			FunctionCall *struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *OpenAIClient) complete(payload chatRequest) (chatResponse, error) {
	buf, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return chatResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return chatResponse{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chatResponse{}, fmt.Errorf("openai request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return chatResponse{}, fmt.Errorf("openai invalid json: %w", err)
	}
	if len(out.Choices) == 0 {
		return chatResponse{}, errors.New("openai: empty choices")
	}
	return out, nil
}

// ChatWithFunction forces a function call and returns its raw JSON arguments.
// Falls back to message content when the model answers without the call, so
// free-text JSON replies can still be salvaged by the caller.
func (c *OpenAIClient) ChatWithFunction(messages []OpenAIMessage, fn OpenAIFunction) (string, error) {
	out, err := c.complete(chatRequest{
		Model:        c.Model,
		Messages:     messages,
		Functions:    []OpenAIFunction{fn},
		FunctionCall: map[string]string{"name": fn.Name},
		Temperature:  0.7,
	})
	if err != nil {
		return "", err
	}
	msg := out.Choices[0].Message
	if msg.FunctionCall != nil && strings.TrimSpace(msg.FunctionCall.Arguments) != "" {
		return msg.FunctionCall.Arguments, nil
	}
	if strings.TrimSpace(msg.Content) != "" {
		return msg.Content, nil
	}
	return "", errors.New("openai: response carried no function arguments")
}
