package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPClassifier calls a model-serving endpoint that accepts the six vitals
// as a feature vector and returns the predicted class with its probability.
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClassifier builds a classifier client for the given model server.
// timeout <= 0 falls back to 10s.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Features []float64 `json:"features"`
}

type classifyResponse struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Classify implements RiskClassifier against the model server's /predict route.
func (c *HTTPClassifier) Classify(ctx context.Context, v Vitals) (Prediction, error) {
	body, err := json.Marshal(classifyRequest{Features: v[:]})
	if err != nil {
		return Prediction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("classifier status: %s", resp.Status)
	}
	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Prediction{}, fmt.Errorf("classifier decode: %w", err)
	}
	if decoded.Probability < 0 || decoded.Probability > 1 {
		return Prediction{}, fmt.Errorf("classifier probability out of range: %v", decoded.Probability)
	}
	return Prediction{
		HighRisk:    decoded.Prediction != 0,
		Probability: decoded.Probability,
	}, nil
}
