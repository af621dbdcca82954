package plangen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/healixhq/healix/internal/model"
	"github.com/sethvargo/go-retry"
)

// Config holds plan-generation API configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Meal is one meal entry in a generated daily plan.
type Meal struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Calories    int    `json:"calories"`
}

// PlanData is the structured daily plan returned by the generation API.
type PlanData struct {
	Summary   string   `json:"summary"`
	Meals     []Meal   `json:"meals"`
	Hydration string   `json:"hydration"`
	Tips      []string `json:"tips"`
}

type generateRequest struct {
	Model     string  `json:"model"`
	Date      string  `json:"date"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender,omitempty"`
	BirthDate string  `json:"birth_date,omitempty"`
	HeightCm  float64 `json:"height_cm,omitempty"`
	WeightKg  float64 `json:"weight_kg,omitempty"`
}

// Client calls the remote plan-generation API. The call is side-effect-free
// on failure, so transient errors (network, 5xx) are retried with backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether the API key is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Generate requests a daily plan for the given profile and date.
func (c *Client) Generate(ctx context.Context, profile *model.Profile, date string) (*PlanData, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("plan generator not configured: missing API key")
	}

	body, err := json.Marshal(generateRequest{
		Model:     c.cfg.Model,
		Date:      date,
		Name:      profile.Name,
		Gender:    profile.Gender,
		BirthDate: profile.BirthDate,
		HeightCm:  profile.HeightCm,
		WeightKg:  profile.WeightKg,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var plan PlanData
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/plans/generate", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("generate request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("generate: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("generate: status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &plan, nil
}
