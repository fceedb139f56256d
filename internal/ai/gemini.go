package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"smartsurvey/internal/config"
)

type geminiProvider struct {
	cfg    *config.AIConfig
	client *http.Client
}

func newGeminiProvider(cfg *config.AIConfig, client *http.Client) *geminiProvider {
	return &geminiProvider{cfg: cfg, client: client}
}

func (p *geminiProvider) Name() string { return config.ProviderGemini }

// Complete calls the generateContent REST endpoint
func (p *geminiProvider) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": in.Prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"temperature":      in.Temperature,
			"maxOutputTokens":  in.MaxTokens,
		},
	}
	if in.System != "" {
		reqBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": in.System}},
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.ModelEndpoint(in.Model), bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// header, not query: transport errors quote the full URL
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", fmt.Errorf("empty response from Gemini")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
