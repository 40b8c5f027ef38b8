package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/sources"
)

const describePrompt = `Watch the video and split it into coherent segments.
Return ONLY a JSON array, no prose, where each element is:
{"start": "HH:MM:SS", "end": "HH:MM:SS", "transcript": "...", "description": "..."}
The transcript is what is said during the segment; the description covers what
is shown on screen.`

// VideoDescriber asks a multimodal chat endpoint to segment a video into
// timestamped transcript and description entries.
type VideoDescriber struct {
	endpoint      string
	apiKey        string
	model         string
	client        *http.Client
	payloadLogger *PayloadLogger
}

func NewVideoDescriber(cfg config.VideoConfig, payloadLogger *PayloadLogger) *VideoDescriber {
	return &VideoDescriber{
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:        cfg.APIKey(),
		model:         cfg.Model,
		client:        &http.Client{Timeout: cfg.Timeout()},
		payloadLogger: payloadLogger,
	}
}

func (d *VideoDescriber) Describe(ctx context.Context, ref sources.MediaRef) ([]core.VideoSegment, error) {
	requestID := core.NewRequestID()
	endpointURL := d.endpoint + "/chat/completions"

	videoURL := ref.URL
	if videoURL == "" {
		fileBytes, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("read video %s: %w", ref.Name, err)
		}
		videoURL = "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(fileBytes)
	}

	payload := map[string]any{
		"model": d.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": describePrompt},
					{"type": "video_url", "video_url": map[string]any{"url": videoURL}},
				},
			},
		},
	}

	d.payloadLogger.LogRequest(requestID, "video", map[string]any{
		"model": d.model,
		"name":  ref.Name,
		"url":   ref.URL,
	})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	startTime := time.Now()
	httpResp, err := d.client.Do(request)
	if err != nil {
		d.payloadLogger.LogError(requestID, "video", 0, []byte(err.Error()))
		return nil, fmt.Errorf("description request failed (request_id=%s): %w", requestID, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		d.payloadLogger.LogError(requestID, "video", httpResp.StatusCode, bodyBytes)

		if len(bodyBytes) > 0 {
			return nil, fmt.Errorf("description error (request_id=%s): %s: %s",
				requestID, httpResp.Status, strings.TrimSpace(string(bodyBytes)))
		}

		return nil, fmt.Errorf("description error (request_id=%s): %s", requestID, httpResp.Status)
	}

	var responsePayload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&responsePayload); err != nil {
		return nil, fmt.Errorf("description response parse failed (request_id=%s): %w", requestID, err)
	}

	if len(responsePayload.Choices) == 0 {
		return nil, fmt.Errorf("description error (request_id=%s): no choices in response", requestID)
	}

	segments, err := parseSegments(responsePayload.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("description parse failed (request_id=%s): %w", requestID, err)
	}

	d.payloadLogger.LogResponse(requestID, "video",
		fmt.Sprintf("%d segments", len(segments)), time.Since(startTime))

	return segments, nil
}

// parseSegments accepts the model's answer with or without a ```json fence.
func parseSegments(content string) ([]core.VideoSegment, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var segments []core.VideoSegment
	if err := json.Unmarshal([]byte(trimmed), &segments); err != nil {
		return nil, err
	}

	return segments, nil
}
