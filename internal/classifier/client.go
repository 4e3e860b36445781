package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/huelab/huelab-go/internal/conf"
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/logging"
	"github.com/huelab/huelab-go/internal/taxonomy"
)

const defaultTimeout = 60 * time.Second

// maxResponseSize bounds response reads to guard against a misbehaving
// endpoint.
const maxResponseSize = 1 << 20

// HTTPClient calls the classification service over HTTP JSON.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a classifier client from settings.
func NewHTTPClient(settings *conf.Settings) (*HTTPClient, error) {
	if settings.Classifier.Endpoint == "" {
		return nil, errors.Newf("classifier endpoint is required").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	timeout := defaultTimeout
	if settings.Classifier.Timeout > 0 {
		timeout = time.Duration(settings.Classifier.Timeout) * time.Second
	}

	return &HTTPClient{
		endpoint:   settings.Classifier.Endpoint,
		apiKey:     settings.Classifier.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.ForService("classifier"),
	}, nil
}

// classifyRequest is the wire format of a classification request.
type classifyRequest struct {
	ImageRef string `json:"image_ref"`
}

// classifyResponse is the wire format of a classification response.
type classifyResponse struct {
	Subtype      string  `json:"subtype"`
	Season       string  `json:"season"`
	Confidence   float64 `json:"confidence"`
	Alternatives []struct {
		Subtype    string  `json:"subtype"`
		Season     string  `json:"season"`
		Confidence float64 `json:"confidence"`
	} `json:"alternatives"`
	Features map[string]any `json:"features"`
}

// serviceError builds a transient classification-service error.
func (c *HTTPClient) serviceError(err error, imageRef string) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryClassificationService).
		Context("transient", true).
		Context("image_ref", imageRef).
		NetworkContext(c.endpoint, c.httpClient.Timeout).
		Build()
}

// parseError builds a non-retryable malformed-response error.
func (c *HTTPClient) parseError(err error, imageRef string) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryClassificationService).
		Context("transient", false).
		Context("image_ref", imageRef).
		Build()
}

// Classify sends one image reference to the service and parses the
// prediction. The context bounds the whole exchange.
func (c *HTTPClient) Classify(ctx context.Context, imageRef string) (*Result, error) {
	body, err := json.Marshal(classifyRequest{ImageRef: imageRef})
	if err != nil {
		return nil, c.parseError(fmt.Errorf("encoding request: %w", err), imageRef)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.serviceError(fmt.Errorf("building request: %w", err), imageRef)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.serviceError(fmt.Errorf("classification request failed: %w", err), imageRef)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, c.serviceError(fmt.Errorf("classification service returned status %d", resp.StatusCode), imageRef)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.serviceError(fmt.Errorf("reading response: %w", err), imageRef)
	}

	var parsed classifyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, c.parseError(fmt.Errorf("decoding response: %w", err), imageRef)
	}

	season, ok := taxonomy.ParseSeason(parsed.Season)
	if !ok || parsed.Subtype == "" {
		return nil, c.parseError(fmt.Errorf("response has no usable prediction (subtype=%q season=%q)", parsed.Subtype, parsed.Season), imageRef)
	}

	result := &Result{
		Label:      taxonomy.Label{Name: parsed.Subtype, Season: season},
		Confidence: parsed.Confidence,
		Features:   parsed.Features,
	}
	for _, alt := range parsed.Alternatives {
		altSeason, ok := taxonomy.ParseSeason(alt.Season)
		if !ok {
			continue
		}
		result.Alternatives = append(result.Alternatives, Alternative{
			Label:      taxonomy.Label{Name: alt.Subtype, Season: altSeason},
			Confidence: alt.Confidence,
		})
	}

	c.logger.Debug("Image classified",
		"image_ref", imageRef,
		"subtype", result.Label.Name,
		"season", result.Label.Season,
		"confidence", result.Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// IsTransient reports whether a classification failure is worth retrying.
func IsTransient(err error) bool {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return false
	}
	transient, ok := ee.Context["transient"].(bool)
	return ok && transient
}
