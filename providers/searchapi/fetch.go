// Package searchapi enthält den Client für das Search-Backend, das eine
// freie Query in Papers, Cluster und Zitations-Kanten übersetzt.
package searchapi

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
	"papermap/models"
)

// Fetcher kapselt die Logik für das Search-Backend.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt einen neuen Search-Fetcher. Die Suche kann je nach
// Query deutlich länger dauern als ein normaler API-Aufruf, daher ist der
// Timeout konfigurierbar.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	timeout := cfg.SearchTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// Search führt die Suche aus und gibt das vollständige Suchergebnis zurück.
// Jede Nicht-2xx-Antwort wird als einheitlicher Fehler behandelt.
func (f *Fetcher) Search(ctx context.Context, query string, maxResults int) (*models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = f.Config.SearchMaxResults
	}

	payload, err := json.Marshal(map[string]any{
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}

	url := f.Config.SearchBaseURL + "/api/search"
	log := f.Logger.With(zap.String("query", query), zap.String("url", url))
	log.Info("Starte Suche beim Search-Backend.")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		log.Error("Search-Anfrage fehlgeschlagen", zap.Error(err))
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("Search-Backend hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var result models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Error("Fehler beim Parsen der Search-JSON-Antwort", zap.Error(err))
		return nil, err
	}

	log.Info("Suche abgeschlossen",
		zap.Int("papers", len(result.Papers)),
		zap.Int("categories", len(result.Categories)),
		zap.Int("citation_links", len(result.CitationLinks)))
	return &result, nil
}
