package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// HTTPClient implements domain.NLUService against the external intent
// extractor's HTTP endpoint. Callers treat any failure here as an invitation
// to use the local keyword fallback.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates an NLU client. timeout bounds each classify call on
// top of whatever context the caller passes.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) domain.NLUService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text    string   `json:"text"`
	History []string `json:"history,omitempty"`
}

type classifyResponse struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Products   []extractedItem   `json:"products"`
	Fields     map[string]string `json:"fields"`
}

type extractedItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Classify implements domain.NLUService.
func (c *HTTPClient) Classify(ctx context.Context, text string, history []string) (*domain.Intent, error) {
	body, err := json.Marshal(classifyRequest{Text: text, History: history})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nlu request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nlu returned status %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("nlu decode: %w", err)
	}

	intent := &domain.Intent{
		Name:       parsed.Intent,
		Confidence: parsed.Confidence,
		Fields:     parsed.Fields,
	}
	if intent.Fields == nil {
		intent.Fields = map[string]string{}
	}
	for _, p := range parsed.Products {
		intent.Products = append(intent.Products, domain.ExtractedProduct{Name: p.Name, Quantity: p.Quantity})
	}
	return intent, nil
}
