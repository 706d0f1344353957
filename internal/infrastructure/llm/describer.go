// Package llm описывает изображения товаров через генеративную модель с OpenAI-совместимым API.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker/v2"
)

const (
	breakerName = "llm-describer"

	analyzePrompt = "Describe this fashion item and suggest three accessories that go well with it. " +
		"Don't add 'Here's a description of the fashion item and accessory suggestions'"
)

// NewChatModel создаёт клиента модели. Пустой ключ означает, что анализ отключён.
func NewChatModel(ctx context.Context, c *cfg.LLMCfg) (model.BaseChatModel, error) {
	if c.APIKey == "" {
		return nil, e.ErrDescriberDisabled
	}

	cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
	})
	if err != nil {
		return nil, e.Wrap("llm.NewChatModel", err)
	}

	return cm, nil
}

// Describer запрашивает у модели описание товара и подсказки аксессуаров.
type Describer struct {
	chat   model.BaseChatModel
	cb     *gobreaker.CircuitBreaker[*schema.Message]
	logger logger.Logger
}

func NewDescriber(chat model.BaseChatModel, c *cfg.LLMCfg, logger logger.Logger) *Describer {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*schema.Message](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     c.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.FailureThreshold
		},
		// Отмена запроса клиентом не считается отказом модели
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from.String(), to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Describer{chat: chat, cb: cb, logger: logger}
}

// Describe отправляет изображение вместе с промптом и разбирает ответ.
func (d *Describer) Describe(ctx context.Context, image *domain.Image) (*domain.Analysis, error) {
	const op = "Describer.Describe"

	msg, err := d.cb.Execute(func() (*schema.Message, error) {
		return d.chat.Generate(ctx, []*schema.Message{userMessage(image)})
	})
	if err != nil {
		metrics.RecordExternalError("llm")
		return nil, e.Wrap(op, err)
	}

	analysis, err := ParseAnalysis(msg.Content)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return analysis, nil
}

func userMessage(image *domain.Image) *schema.Message {
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image.Data))

	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeText,
				Text: analyzePrompt,
			},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      dataURL,
					MIMEType: mimeType,
				},
			},
		},
	}
}

// ParseAnalysis: первая строка ответа становится описанием, остальные непустые строки подсказками
// без маркеров списка и markdown-выделения. Строки, в которых после очистки ничего не осталось
// (например "**" или "- "), отбрасываются, пустых подсказок в ответе не бывает.
func ParseAnalysis(text string) (*domain.Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, e.ErrEmptyModelResponse
	}

	lines := strings.Split(text, "\n")
	description := strings.TrimSpace(lines[0])

	suggestions := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		s := strings.Trim(strings.TrimSpace(line), "- ")
		s = strings.TrimSpace(strings.ReplaceAll(s, "*", ""))
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
	}

	return domain.NewAnalysis(description, suggestions), nil
}
