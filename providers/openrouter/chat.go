// Package openrouter enthält den Chat-Client. Das Backend ist ein
// OpenRouter-kompatibler Chat-Completions-Endpunkt; der Paper-Kontext wird
// pro Anfrage in den System-Prompt eingebettet.
package openrouter

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"papermap/config"
	"papermap/models"
)

// Fetcher kapselt die Chat-Logik gegen OpenRouter.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *openai.Client
}

// NewFetcher erstellt einen neuen Chat-Fetcher. Der Client wird für alle
// Anfragen wiederverwendet (Connection-Pooling).
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	clientCfg := openai.DefaultConfig(cfg.OpenRouterAPIKey)
	clientCfg.BaseURL = cfg.OpenRouterBaseURL
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Chat schickt eine Nutzer-Nachricht samt Paper-Kontext und Verlauf an das
// Chat-Backend und gibt die Antwort zurück.
func (f *Fetcher) Chat(ctx context.Context, message string, papers []models.ContextEntry, history []models.ChatMessage, webSearch bool) (string, error) {
	model := f.Config.OpenRouterModel
	if webSearch {
		// OpenRouter aktiviert Web-Suche über das ":online"-Modellsuffix.
		model += ":online"
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: buildSystemPrompt(papers),
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	f.Logger.Debug("Rufe Chat-Backend auf",
		zap.String("model", model),
		zap.Int("context_papers", len(papers)),
		zap.Int("history", len(history)))

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildSystemPrompt baut den Research-Assistant-Prompt aus den Paper-Snapshots.
func buildSystemPrompt(papers []models.ContextEntry) string {
	blocks := make([]string, 0, len(papers))
	for _, p := range papers {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s** (arxiv:%s)\n", p.Title, p.ID)
		fmt.Fprintf(&b, "Abstract: %s\n", p.Abstract)
		blocks = append(blocks, b.String())
	}

	return fmt.Sprintf(`You are a research assistant helping analyze academic papers.

You have access to the following papers:

%s

Guidelines:
- Answer questions based on the paper content provided
- Cite specific papers when making claims (use arxiv ID)
- If information isn't in the papers, say so clearly
- Be concise but thorough
- For technical questions, explain concepts clearly`, strings.Join(blocks, "\n---\n"))
}
