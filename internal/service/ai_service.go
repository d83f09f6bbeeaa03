package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

const aiFallbackModel = "mistralai/mistral-7b-instruct"

// AIService talks to the OpenRouter chat-completions API. Every call is
// bounded by the client timeout; callers must treat an error as "use the
// template" and never block on this collaborator.
type AIService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewAIService(apiKey, model, baseURL string) *AIService {
	return &AIService{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *AIService) IsEnabled() bool {
	return s.apiKey != ""
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete runs one chat completion, retrying once on the fallback model.
func (s *AIService) Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (string, error) {
	if !s.IsEnabled() {
		return "", fmt.Errorf("ai disabled")
	}

	text, err := s.complete(ctx, messages, maxTokens, s.model)
	if err != nil && s.model != aiFallbackModel {
		log.Printf("AI request failed, trying fallback model: %v", err)
		return s.complete(ctx, messages, maxTokens, aiFallbackModel)
	}
	return text, err
}

func (s *AIService) complete(ctx context.Context, messages []ChatMessage, maxTokens int, model string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// ReminderText asks the model for a short personalized nudge.
func (s *AIService) ReminderText(ctx context.Context, user *domain.User, habit *domain.Habit) (string, error) {
	messages := []ChatMessage{
		{
			Role: "system",
			Content: "Ты дружелюбный коуч по привычкам. Напиши короткое (до 2 предложений) " +
				"мотивирующее напоминание на русском языке. Без хэштегов.",
		},
		{
			Role: "user",
			Content: fmt.Sprintf("Пользователь %s, привычка: «%s», текущая серия: %d дней. Напомни выполнить её сегодня.",
				user.FirstName, habit.Name, habit.CurrentStreak),
		},
	}
	return s.Complete(ctx, messages, 150)
}

// HabitAdvice generates a tip for the /advice command.
func (s *AIService) HabitAdvice(ctx context.Context, user *domain.User, habits []*domain.Habit) (string, error) {
	var sb strings.Builder
	for _, h := range habits {
		fmt.Fprintf(&sb, "- %s (серия %d дн.)\n", h.Name, h.CurrentStreak)
	}

	messages := []ChatMessage{
		{
			Role: "system",
			Content: "Ты коуч по привычкам. Дай один конкретный практичный совет на русском языке, " +
				"не больше 4 предложений.",
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Привычки пользователя %s:\n%sЧто посоветуешь?", user.FirstName, sb.String()),
		},
	}
	return s.Complete(ctx, messages, 300)
}
