package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Search-Backend (liefert Papers, Cluster und Zitations-Kanten)
	SearchBaseURL    string        `envconfig:"SEARCH_BASE_URL" required:"true"`
	SearchTimeout    time.Duration `envconfig:"SEARCH_TIMEOUT" default:"120s"`
	SearchMaxResults int           `envconfig:"SEARCH_MAX_RESULTS" default:"200"`

	// Parse-Backend (PDF-zu-Text via VLM, Submit/Poll-Protokoll)
	ParserBaseURL   string        `envconfig:"PARSER_BASE_URL" required:"true"`
	PollInterval    time.Duration `envconfig:"PARSE_POLL_INTERVAL" default:"2s"`
	MaxPollAttempts int           `envconfig:"PARSE_MAX_POLL_ATTEMPTS" default:"30"`

	// Chat-Backend (OpenRouter-kompatibel)
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY" required:"true"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string `envconfig:"OPENROUTER_MODEL" default:"anthropic/claude-sonnet-4"`
	ChatHistoryLimit  int    `envconfig:"CHAT_HISTORY_LIMIT" default:"10"`

	// Session-Verwaltung
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	JanitorSchedule string        `envconfig:"JANITOR_SCHEDULE" default:"*/15 * * * *"`

	// Externer Dokument-Viewer (Paper-ID wird in das Template eingesetzt)
	ViewerURLTemplate string `envconfig:"VIEWER_URL_TEMPLATE" default:"https://arxiv.org/abs/%s"`
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
