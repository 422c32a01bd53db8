package main

import (
	"log"
	"net/http"
	"time"

	"papermap/config"
	"papermap/providers/openrouter"
	"papermap/providers/parseapi"
	"papermap/providers/searchapi"
	"papermap/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	searchesCounter       prometheus.Counter
	searchFailuresCounter prometheus.Counter
	parseCompletedCounter prometheus.Counter
	parseFailedCounter    prometheus.Counter
	chatRequestsCounter   prometheus.Counter
)

func init() {
	searchesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searches_total",
		Help: "Total number of search requests handled.",
	})
	searchFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_failures_total",
		Help: "Total number of failed search requests.",
	})
	parseCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parse_jobs_completed_total",
		Help: "Total number of parse jobs that completed successfully.",
	})
	parseFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parse_jobs_failed_total",
		Help: "Total number of parse jobs that failed.",
	})
	chatRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Total number of chat requests sent to the backend.",
	})
	prometheus.MustRegister(searchesCounter, searchFailuresCounter,
		parseCompletedCounter, parseFailedCounter, chatRequestsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Collaborator-Clients
	searchClient := searchapi.NewFetcher(cfg, logging)
	parseClient := parseapi.NewFetcher(cfg, logging)
	chatClient := openrouter.NewFetcher(cfg, logging)

	// Setup Session-Register
	store := services.NewStore(cfg, logging, searchClient, parseClient, chatClient)
	store.OnParseCompleted = func() { parseCompletedCounter.Inc() }
	store.OnParseFailed = func() { parseFailedCounter.Inc() }

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": store.Count()})
	})

	// Setup Routes
	setupSessionRoutes(router, store, cfg, logging)

	// Setup Cron: Janitor räumt untätige Sessions weg.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.JanitorSchedule, func() {
		removed := store.Sweep(cfg.SessionTTL)
		if removed > 0 {
			logging.Info("Janitor-Lauf abgeschlossen", zap.Int("removed_sessions", removed))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// sessionOr404 löst die Session-ID aus dem Pfad auf.
func sessionOr404(c *gin.Context, store *services.Store) (*services.Session, bool) {
	sess, ok := store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

// setupSessionRoutes konfiguriert alle Session-bezogenen API-Routen.
func setupSessionRoutes(router *gin.Engine, store *services.Store, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/sessions")

	// POST - Neue Session anlegen
	rg.POST("/", func(c *gin.Context) {
		sess := store.Create()
		c.JSON(http.StatusCreated, gin.H{"session_id": sess.ID})
	})

	// POST - Neue Suche (setzt den gesamten Session-Zustand zurück)
	rg.POST("/:id/search", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}

		var req struct {
			Query      string `json:"query" binding:"required"`
			MaxResults int    `json:"max_results"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'query' field is required."})
			return
		}
		if req.MaxResults <= 0 {
			req.MaxResults = cfg.SearchMaxResults
		}

		searchesCounter.Inc()
		status := sess.Search(c.Request.Context(), req.Query, req.MaxResults)
		if status == services.StatusSearchFailed {
			searchFailuresCounter.Inc()
		}

		c.JSON(http.StatusOK, gin.H{
			"status":           status,
			"graph":            sess.VisibleGraph(),
			"categories":       sess.Categories(),
			"expanded_queries": sess.ExpandedQueries(),
		})
	})

	// GET - Sichtbarer Teilgraph unter dem aktuellen Filter
	rg.GET("/:id/graph", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     sess.Status(),
			"graph":      sess.VisibleGraph(),
			"categories": sess.Categories(),
		})
	})

	// PUT - Beide Filter-Prädikate atomar ersetzen
	rg.PUT("/:id/filters", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}

		var req struct {
			VisibleClusters []int      `json:"visible_clusters"`
			Cutoff          *time.Time `json:"cutoff"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sess.SetFilter(req.VisibleClusters, req.Cutoff)
		c.JSON(http.StatusOK, gin.H{"graph": sess.VisibleGraph()})
	})

	// POST - Drag-Gesten-Events für das Kontext-Dock
	rg.POST("/:id/dock/events", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}

		var req struct {
			Type   string `json:"type" binding:"required"`
			NodeID string `json:"node_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'type' field is required."})
			return
		}

		switch req.Type {
		case "drag_start":
			if !sess.DragStart(req.NodeID) {
				c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
				return
			}
		case "dock_enter":
			sess.DockEnter()
		case "dock_leave":
			sess.DockLeave()
		case "release":
			change := sess.DropRelease()
			c.JSON(http.StatusOK, gin.H{
				"state":   sess.DockState(),
				"added":   changedIDs(change),
				"entries": sess.ContextEntries(),
			})
			return
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"state": sess.DockState()})
	})

	// GET - Kontext-Mitgliedschaft samt Parse-Zustand
	rg.GET("/:id/context", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}
		parsing, parsed := sess.ParseState()
		c.JSON(http.StatusOK, gin.H{
			"entries": sess.ContextEntries(),
			"parsing": parsing,
			"parsed":  parsed,
		})
	})

	// DELETE - Paper explizit aus dem Kontext entfernen
	rg.DELETE("/:id/context/:paperId", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}
		change := sess.RemoveFromContext(c.Param("paperId"))
		if change == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": sess.ContextEntries()})
	})

	// POST - Chat-Nachricht im Kontext der ausgewählten Papers
	rg.POST("/:id/chat", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}

		var req struct {
			Message   string `json:"message" binding:"required"`
			WebSearch bool   `json:"web_search"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'message' field is required."})
			return
		}

		chatRequestsCounter.Inc()
		appended := sess.Chat(c.Request.Context(), req.Message, req.WebSearch)
		if appended == nil {
			// Stille Verweigerung: leerer Kontext oder Anfrage läuft bereits.
			c.JSON(http.StatusConflict, gin.H{"error": "chat unavailable: empty context or request in flight"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": appended})
	})

	// GET - Vollständiges Chat-Protokoll
	rg.GET("/:id/messages", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": sess.Messages()})
	})

	// GET - Kanonischer Dokument-Viewer-Link für ein Paper
	rg.GET("/:id/papers/:paperId/link", func(c *gin.Context) {
		sess, ok := sessionOr404(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": sess.ViewerLink(c.Param("paperId"))})
	})

	log.Info("Session routes configured successfully",
		zap.String("base_path", "/sessions"),
		zap.Strings("endpoints", []string{"/search", "/graph", "/filters", "/dock/events", "/context", "/chat", "/messages", "/papers/:paperId/link"}))
}

// changedIDs macht das Added-Diff nil-sicher für die JSON-Antwort.
func changedIDs(change *services.MembershipChange) []string {
	if change == nil {
		return []string{}
	}
	return change.Added
}
