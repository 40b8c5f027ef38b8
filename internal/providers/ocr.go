package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/core"
)

// DocumentExtractor turns an uploaded file into per-page markdown plus the
// images embedded in each page, via the extraction service's HTTP API.
type DocumentExtractor struct {
	endpoint      string
	apiKey        string
	model         string
	client        *http.Client
	payloadLogger *PayloadLogger
}

func NewDocumentExtractor(cfg config.OCRConfig, payloadLogger *PayloadLogger) *DocumentExtractor {
	return &DocumentExtractor{
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:        cfg.APIKey(),
		model:         cfg.Model,
		client:        &http.Client{Timeout: cfg.Timeout()},
		payloadLogger: payloadLogger,
	}
}

type extractResponse struct {
	Pages []struct {
		Markdown string `json:"markdown"`
		Images   []struct {
			ID       string `json:"id"`
			Data     string `json:"data_base64"`
			MimeType string `json:"mime_type"`
		} `json:"images"`
	} `json:"pages"`
}

func (e *DocumentExtractor) Extract(ctx context.Context, fileBytes []byte, fileName string) ([]core.Page, error) {
	requestID := core.NewRequestID()
	endpointURL := e.endpoint + "/v1/documents/extract"

	payload := map[string]any{
		"model":       e.model,
		"file_name":   fileName,
		"file_base64": base64.StdEncoding.EncodeToString(fileBytes),
	}

	e.payloadLogger.LogRequest(requestID, "ocr", map[string]any{
		"model":      e.model,
		"file_name":  fileName,
		"file_bytes": len(fileBytes),
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
	if e.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	startTime := time.Now()
	httpResp, err := e.client.Do(request)
	if err != nil {
		e.payloadLogger.LogError(requestID, "ocr", 0, []byte(err.Error()))
		return nil, fmt.Errorf("extraction request failed (request_id=%s): %w", requestID, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		e.payloadLogger.LogError(requestID, "ocr", httpResp.StatusCode, bodyBytes)

		if len(bodyBytes) > 0 {
			return nil, fmt.Errorf("extraction error (request_id=%s): %s: %s",
				requestID, httpResp.Status, strings.TrimSpace(string(bodyBytes)))
		}

		return nil, fmt.Errorf("extraction error (request_id=%s): %s", requestID, httpResp.Status)
	}

	var parsed extractResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("extraction response parse failed (request_id=%s): %w", requestID, err)
	}

	pages := make([]core.Page, 0, len(parsed.Pages))
	for _, rawPage := range parsed.Pages {
		page := core.Page{Markdown: rawPage.Markdown}
		for _, rawImage := range rawPage.Images {
			mimeType := rawImage.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			page.Images = append(page.Images, core.PageImage{
				ID:     rawImage.ID,
				Base64: "data:" + mimeType + ";base64," + rawImage.Data,
			})
		}
		pages = append(pages, page)
	}

	e.payloadLogger.LogResponse(requestID, "ocr",
		fmt.Sprintf("%d pages", len(pages)), time.Since(startTime))

	return pages, nil
}
