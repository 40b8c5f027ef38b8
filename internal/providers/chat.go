// Package providers holds the external model collaborators: streaming chat,
// document extraction, video description, and speech.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
)

// ChatClient streams chat completions from any OpenAI-compatible endpoint.
type ChatClient struct {
	client        *openai.Client
	model         string
	payloadLogger *PayloadLogger
}

func NewChatClient(cfg config.ChatConfig, payloadLogger *PayloadLogger) *ChatClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey())
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &ChatClient{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		payloadLogger: payloadLogger,
	}
}

// StreamChat opens a streamed completion over the given turns. Each content
// increment arrives on the returned channel; a request or decode failure
// arrives as a single delta with Err set, then the channel closes.
func (c *ChatClient) StreamChat(ctx context.Context, turns []core.LedgerTurn) (<-chan core.StreamDelta, error) {
	requestID := core.NewRequestID()

	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toChatMessages(turns),
		Stream:   true,
	}

	c.payloadLogger.LogRequest(requestID, "chat", map[string]any{
		"model":      request.Model,
		"turn_count": len(turns),
	})

	startTime := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		c.payloadLogger.LogError(requestID, "chat", statusCode(err), []byte(err.Error()))
		return nil, fmt.Errorf("chat stream open failed (request_id=%s): %w", requestID, err)
	}

	deltas := make(chan core.StreamDelta, 8)

	go func() {
		defer close(deltas)
		defer stream.Close()

		total := 0
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				c.payloadLogger.LogResponse(requestID, "chat",
					fmt.Sprintf("%d bytes streamed", total), time.Since(startTime))
				return
			}
			if err != nil {
				c.payloadLogger.LogError(requestID, "chat", statusCode(err), []byte(err.Error()))
				select {
				case deltas <- core.StreamDelta{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			content := response.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			total += len(content)

			select {
			case deltas <- core.StreamDelta{Text: content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return deltas, nil
}

func toChatMessages(turns []core.LedgerTurn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))

	for _, turn := range turns {
		message := openai.ChatCompletionMessage{Role: string(turn.Role)}

		// A pure-text turn uses the plain content field; anything carrying
		// images goes through multi-part content.
		if textOnly(turn.Content) {
			message.Content = joinText(turn.Content)
		} else {
			message.MultiContent = toParts(turn.Content)
		}

		messages = append(messages, message)
	}

	return messages
}

func textOnly(block core.ContentBlock) bool {
	for _, segment := range block {
		if segment.Kind != core.SegmentText {
			return false
		}
	}
	return true
}

func joinText(block core.ContentBlock) string {
	var text string
	for _, segment := range block {
		text += segment.Text
	}
	return text
}

func toParts(block core.ContentBlock) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(block))

	for _, segment := range block {
		switch segment.Kind {
		case core.SegmentImage:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: segment.Image},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: segment.Text,
			})
		}
	}

	return parts
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
