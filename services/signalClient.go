package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/apex/log"

	"civicpulse-be/models"
)

// signalTimeout bounds the single classifier call made per submission.
// Submissions must never hang or fail on the classifier.
const signalTimeout = 5 * time.Second

// TriageSignal is the external classifier's verdict on a submission. Only
// Priority and Confidence feed the fusion decision; the rest is audit.
type TriageSignal struct {
	Priority        models.Priority `json:"priority"`
	Confidence      float64         `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	SafetyRisk      string          `json:"safetyRisk"`
	SuggestedAction string          `json:"suggestedAction"`
}

// SignalClient fetches a triage verdict for a submission from an external
// classifier service.
type SignalClient interface {
	Classify(ctx context.Context, category models.IssueCategory, description string, imageURL *string) (*TriageSignal, error)
}

type httpSignalClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewSignalClientFromEnv builds the classifier client from TRIAGE_API_URL
// and TRIAGE_API_KEY. Returns nil when no URL is configured; fusion then
// runs on baseline and text signals alone.
func NewSignalClientFromEnv() SignalClient {
	url := os.Getenv("TRIAGE_API_URL")
	if url == "" {
		log.Info("TRIAGE_API_URL not set, priority fusion runs without classifier signal")
		return nil
	}
	return &httpSignalClient{
		url:    url,
		apiKey: os.Getenv("TRIAGE_API_KEY"),
		client: &http.Client{Timeout: signalTimeout},
	}
}

func (c *httpSignalClient) Classify(ctx context.Context, category models.IssueCategory, description string, imageURL *string) (*TriageSignal, error) {
	payload := map[string]interface{}{
		"category":    category,
		"description": description,
	}
	if imageURL != nil {
		payload["imageUrl"] = *imageURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var signal TriageSignal
	if err := json.NewDecoder(resp.Body).Decode(&signal); err != nil {
		return nil, err
	}
	if signal.Priority.Rank() < 0 {
		return nil, fmt.Errorf("classifier returned unknown priority %q", signal.Priority)
	}
	if signal.Confidence < 0 || signal.Confidence > 1 {
		return nil, fmt.Errorf("classifier confidence %.2f out of range", signal.Confidence)
	}
	return &signal, nil
}

// TriageService runs priority fusion for new submissions, consulting the
// classifier at most once and degrading silently when it is unavailable.
type TriageService struct {
	signals SignalClient
}

func NewTriageService(signals SignalClient) *TriageService {
	return &TriageService{signals: signals}
}

// Assess produces the fused priority for a submission. Classifier failures
// are logged and absorbed here; this never returns an error.
func (t *TriageService) Assess(ctx context.Context, category models.IssueCategory, description string, imageURL *string) FusionResult {
	var signal *TriageSignal
	if t.signals != nil {
		sctx, cancel := context.WithTimeout(ctx, signalTimeout)
		defer cancel()

		s, err := t.signals.Classify(sctx, category, description, imageURL)
		if err != nil {
			log.WithError(err).Warn("triage classifier unavailable, falling back to baseline and text signals")
		} else {
			signal = s
		}
	}
	return FusePriority(category, description, signal)
}
