// Package parseapi enthält den Client für das Parse-Backend, das Paper-PDFs
// asynchron in Text umwandelt (Submit/Poll-Protokoll).
package parseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"papermap/config"
	"papermap/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher kapselt die Logik für das Parse-Backend.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Parse-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Submit reicht einen Parse-Job für ein Paper ein. Das Backend antwortet
// entweder mit einem fertigen Ergebnis (cached/completed) oder mit einer
// Job-ID zum Pollen.
func (f *Fetcher) Submit(ctx context.Context, paperID, pdfURL string) (*providers.SubmitResult, error) {
	payload, err := json.Marshal(map[string]string{
		"paper_id": paperID,
		"pdf_url":  pdfURL,
	})
	if err != nil {
		return nil, err
	}

	url := f.Config.ParserBaseURL + "/api/parse-paper"
	log := f.Logger.With(zap.String("paper_id", paperID), zap.String("url", url))
	log.Debug("Reiche Parse-Job ein.")

	var result providers.SubmitResult
	if err := f.postJSON(ctx, url, payload, &result); err != nil {
		log.Error("Parse-Submit fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	return &result, nil
}

// Poll fragt den Zustand eines laufenden Parse-Jobs ab.
func (f *Fetcher) Poll(ctx context.Context, jobID string) (*providers.PollResult, error) {
	url := fmt.Sprintf("%s/api/parse-jobs/%s", f.Config.ParserBaseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.Logger.Warn("Parse-Backend hat nicht-200-Status beim Poll zurückgegeben",
			zap.String("job_id", jobID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("poll failed: status %d", resp.StatusCode)
	}

	var result providers.PollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// postJSON führt einen JSON-POST aus und dekodiert die Antwort in out.
func (f *Fetcher) postJSON(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("parse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("parse backend returned status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
