package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Prediction is one label/score pair returned by the classifier service.
type Prediction struct {
	Label string  `json:"className"`
	Score float64 `json:"probability"`
}

// Unsafe labels per the classifier's taxonomy.
var unsafeLabels = map[string]bool{
	"Porn":   true,
	"Hentai": true,
	"Sexy":   true,
}

// MaxUnsafeScore returns the highest score among unsafe labels.
func MaxUnsafeScore(predictions []Prediction) float64 {
	var max float64
	for _, p := range predictions {
		if unsafeLabels[p.Label] && p.Score > max {
			max = p.Score
		}
	}
	return max
}

// Client calls the sibling NSFW image classification service. Callers treat
// it as best-effort: classifier unavailability degrades to "allow".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	URL string `json:"url"`
}

// Classify submits an image URL and returns the service's predictions.
func (c *Client) Classify(ctx context.Context, imageURL string) ([]Prediction, error) {
	body, err := json.Marshal(classifyRequest{URL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var predictions []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return predictions, nil
}
