package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"papermap/models"
	"papermap/providers"
)

// Poll-Zustände des Parse-Backends.
const (
	parseStatusProcessing = "processing"
	parseStatusCompleted  = "completed"
	parseStatusFailed     = "failed"
)

// ParseJobOrchestrator sorgt dafür, dass jedes in den Kontext aufgenommene
// Paper genau einmal geparst wird. Pro Paper läuft höchstens ein lebender Job;
// Jobs verschiedener Papers laufen unabhängig voneinander. Die Mengen
// "parsing" und "parsed" sind konstruktionsbedingt disjunkt.
type ParseJobOrchestrator struct {
	provider providers.ParseProvider
	logger   *zap.Logger

	interval    time.Duration
	maxAttempts int

	mu      sync.Mutex
	jobs    map[string]*models.ParseJob
	cancels map[string]context.CancelFunc
	parsed  map[string]bool

	// OnCompleted und OnFailed werden nach einem Terminal-Übergang außerhalb
	// des Locks aufgerufen (z.B. für Metriken). Optional.
	OnCompleted func(paperID string)
	OnFailed    func(paperID string)
}

// NewParseJobOrchestrator erstellt einen Orchestrator mit dem gegebenen
// Poll-Intervall und Versuchsbudget.
func NewParseJobOrchestrator(p providers.ParseProvider, logger *zap.Logger, interval time.Duration, maxAttempts int) *ParseJobOrchestrator {
	return &ParseJobOrchestrator{
		provider:    p,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
		jobs:        make(map[string]*models.ParseJob),
		cancels:     make(map[string]context.CancelFunc),
		parsed:      make(map[string]bool),
	}
}

// EnsureParsed startet asynchron das Parsing für ein Paper. Ist das Paper
// bereits geparst oder läuft schon ein Job, passiert nichts (Idempotenz).
func (o *ParseJobOrchestrator) EnsureParsed(ctx context.Context, paperID, pdfURL string) {
	o.mu.Lock()
	if o.parsed[paperID] {
		o.mu.Unlock()
		return
	}
	if _, live := o.jobs[paperID]; live {
		o.mu.Unlock()
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	o.jobs[paperID] = &models.ParseJob{PaperID: paperID, Status: models.ParseJobSubmitted}
	o.cancels[paperID] = cancel
	o.mu.Unlock()

	go o.run(jobCtx, paperID, pdfURL)
}

// CancelJob widerruft einen laufenden Job, etwa wenn das Paper den Kontext
// verlässt. Die Poll-Schleife endet beim nächsten Tick; ein Abschluss, der
// den Abbruch überholt, bleibt als geparst stehen.
func (o *ParseJobOrchestrator) CancelJob(paperID string) {
	o.mu.Lock()
	cancel := o.cancels[paperID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Parsing gibt einen Snapshot der aktuell laufenden Paper-IDs zurück.
func (o *ParseJobOrchestrator) Parsing() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.jobs))
	for id := range o.jobs {
		out = append(out, id)
	}
	return out
}

// Parsed gibt einen Snapshot der fertig geparsten Paper-IDs zurück.
func (o *ParseJobOrchestrator) Parsed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.parsed))
	for id := range o.parsed {
		out = append(out, id)
	}
	return out
}

// IsParsed meldet, ob ein Paper bereits fertig geparst wurde.
func (o *ParseJobOrchestrator) IsParsed(paperID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.parsed[paperID]
}

// run treibt einen einzelnen Job: Submit, dann Poll bis zum Terminal-Zustand
// oder bis das Versuchsbudget erschöpft ist.
func (o *ParseJobOrchestrator) run(ctx context.Context, paperID, pdfURL string) {
	log := o.logger.With(zap.String("paper_id", paperID))

	result, err := o.provider.Submit(ctx, paperID, pdfURL)
	if err != nil {
		log.Warn("Parse-Submit fehlgeschlagen", zap.Error(err))
		o.finish(paperID, false)
		return
	}

	// Backend hat das Dokument bereits im Cache oder sofort fertig geparst.
	if result.Cached || result.Status == parseStatusCompleted {
		log.Info("Paper war bereits geparst (Cache-Treffer).")
		o.finish(paperID, true)
		return
	}
	if result.Status == parseStatusFailed {
		log.Warn("Parse-Backend hat den Job sofort abgelehnt.")
		o.finish(paperID, false)
		return
	}

	o.mu.Lock()
	if job := o.jobs[paperID]; job != nil {
		job.JobID = result.JobID
		job.Status = models.ParseJobPolling
	}
	o.mu.Unlock()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Debug("Parse-Job abgebrochen", zap.Int("attempts", attempt-1))
			o.drop(paperID)
			return
		case <-ticker.C:
		}

		poll, err := o.provider.Poll(ctx, result.JobID)
		o.bumpAttempts(paperID)
		if err != nil {
			log.Warn("Poll fehlgeschlagen", zap.String("job_id", result.JobID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch poll.Status {
		case parseStatusCompleted:
			log.Info("Paper erfolgreich geparst", zap.Int("attempts", attempt))
			o.finish(paperID, true)
			return
		case parseStatusFailed:
			log.Warn("Parse-Job fehlgeschlagen", zap.String("job_id", result.JobID), zap.String("error", poll.Error))
			o.finish(paperID, false)
			return
		}
		// processing: weiter pollen
	}

	// Budget erschöpft: stiller Abbruch, Paper bleibt ungeparst.
	log.Warn("Poll-Budget erschöpft, gebe auf", zap.Int("max_attempts", o.maxAttempts))
	o.drop(paperID)
}

// finish überführt einen Job in seinen Terminal-Zustand. Eine ID landet nie
// gleichzeitig in parsing und parsed.
func (o *ParseJobOrchestrator) finish(paperID string, ok bool) {
	o.mu.Lock()
	delete(o.jobs, paperID)
	delete(o.cancels, paperID)
	if ok {
		o.parsed[paperID] = true
	}
	o.mu.Unlock()

	if ok && o.OnCompleted != nil {
		o.OnCompleted(paperID)
	}
	if !ok && o.OnFailed != nil {
		o.OnFailed(paperID)
	}
}

// drop entfernt einen Job ohne Terminal-Zustand (Abbruch oder Budget).
func (o *ParseJobOrchestrator) drop(paperID string) {
	o.mu.Lock()
	delete(o.jobs, paperID)
	delete(o.cancels, paperID)
	o.mu.Unlock()
}

func (o *ParseJobOrchestrator) bumpAttempts(paperID string) {
	o.mu.Lock()
	if job := o.jobs[paperID]; job != nil {
		job.Attempts++
	}
	o.mu.Unlock()
}

// Clear verwirft alle Jobs und Ergebnisse (Reset bei neuer Suche). Laufende
// Schleifen werden abgebrochen.
func (o *ParseJobOrchestrator) Clear() {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, c := range o.cancels {
		cancels = append(cancels, c)
	}
	o.jobs = make(map[string]*models.ParseJob)
	o.cancels = make(map[string]context.CancelFunc)
	o.parsed = make(map[string]bool)
	o.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}
