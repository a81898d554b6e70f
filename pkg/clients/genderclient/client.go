package genderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

// maxBatchSize is the most names the classifier accepts per request
const maxBatchSize = 100

// Client calls a name-based gender classification API (genderFullBatch style: POST a batch of
// {id, name}, receive {id, likelyGender})
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// NewClient creates a Client. A nil httpClient uses a client with a 30 second timeout.
func NewClient(url, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		url:        url,
		apiKey:     apiKey,
	}
}

type batchRequest struct {
	PersonalNames []gender.Query `json:"personalNames"`
}

type batchResponse struct {
	PersonalNames []struct {
		ID           string `json:"id"`
		LikelyGender string `json:"likelyGender"`
	} `json:"personalNames"`
}

// Classify sends queries in batches and returns a gender per query ID
func (c *Client) Classify(ctx context.Context, queries []gender.Query) (map[string]model.Gender, error) {
	result := make(map[string]model.Gender, len(queries))

	for start := 0; start < len(queries); start += maxBatchSize {
		end := min(start+maxBatchSize, len(queries))

		batch, err := c.classifyBatch(ctx, queries[start:end])
		if err != nil {
			return nil, err
		}
		for id, g := range batch {
			result[id] = g
		}
	}

	return result, nil
}

func (c *Client) classifyBatch(ctx context.Context, queries []gender.Query) (map[string]model.Gender, error) {
	body, err := json.Marshal(batchRequest{PersonalNames: queries})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	result := make(map[string]model.Gender, len(decoded.PersonalNames))
	for _, p := range decoded.PersonalNames {
		result[model.NormalizeEmail(p.ID)] = model.ParseGender(p.LikelyGender)
	}
	return result, nil
}
