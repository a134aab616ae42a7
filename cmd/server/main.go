// Package main provides the hindsight webhook server.
//
// Configuration via environment variables (a YAML file named by
// HINDSIGHT_CONFIG may supply any of them; the environment wins):
//
//	GITHUB_APP_ID            - GitHub App ID (required)
//	GITHUB_WEBHOOK_SECRET    - Webhook signature verification secret (required)
//	GITHUB_PRIVATE_KEY       - GitHub App private key in PEM format
//	GITHUB_PRIVATE_KEY_PATH  - Path to the private key file (alternative)
//	ANTHROPIC_API_KEY        - Anthropic API key for Claude (required)
//	DATABASE_URL             - PostgreSQL connection string (required)
//	PORT                     - HTTP server port (default: 8080)
//	PROCESS_ASYNC            - Acknowledge deliveries with 202 and process in
//	                           the background (default: false)
//	MAX_CONCURRENT_REVIEWS   - Background processing slots (default: 4)
//
// Usage:
//
//	go run cmd/server/main.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/config"
	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/notify"
	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage/postgres"
	"github.com/hindsight-ai/hindsight/webhook"
)

var (
	logger         *slog.Logger
	cfg            *config.Config
	pgStorage      *postgres.PostgreSQL
	webhookHandler *github.WebhookHandler
	dispatcher     *webhook.Dispatcher
	runner         *webhook.Runner
)

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if err := initialize(); err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer pgStorage.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/github", handleWebhook)
	mux.HandleFunc("/settings/", handleSettings)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/", handleRoot)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for Claude API calls
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.Port, "async", cfg.ProcessAsync)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}

	// Let in-flight background runs finish before the process exits.
	runner.Wait()
}

func initialize() error {
	var err error
	cfg, err = config.Load(context.Background())
	if err != nil {
		return err
	}

	privateKey, err := cfg.LoadPrivateKey()
	if err != nil {
		return err
	}

	pgStorage, err = postgres.NewFromDSN(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := pgStorage.Migrate(context.Background()); err != nil {
		return err
	}

	auth := github.NewAuthenticator(cfg.AppID, privateKey, cfg.TokenURL)
	client := github.NewClient(auth)
	analyzer := analysis.NewAnalyzer(cfg.AnthropicAPIKey, cfg.Model, logger)
	notifier := notify.New(client, logger)
	webhookHandler = github.NewWebhookHandler(cfg.WebhookSecret)

	saga := webhook.NewSaga(pgStorage, client, analyzer, notifier, logger)
	dispatcher = webhook.NewDispatcher(webhookHandler, saga, pgStorage, logger)
	runner = webhook.NewRunner(dispatcher, cfg.MaxConcurrentReviews, logger)

	logger.Info("initialized",
		"app_id", cfg.AppID,
		"model", cfg.Model,
		"api_key_hint", analysis.ExtractKeyHint(cfg.AnthropicAPIKey),
	)

	return nil
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"name":   "hindsight",
		"status": "running",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	logger.Info("received webhook", "event", eventType, "size", len(payload))

	envelope := github.WebhookEnvelope{
		Payload:   payload,
		EventType: eventType,
		Signature: r.Header.Get("X-Hub-Signature-256"),
	}

	// Ping deliveries carry no work beyond the signature check itself.
	if eventType == "ping" {
		if err := webhookHandler.VerifySignature(r.Context(), payload, envelope.Signature); err != nil {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	event, err := dispatcher.Admit(r.Context(), envelope)
	if err != nil {
		logger.Error("delivery rejected", "error", err)
		http.Error(w, err.Error(), webhook.HTTPStatus(err))
		return
	}

	if cfg.ProcessAsync {
		runner.Enqueue(event)
		jsonResponse(w, http.StatusAccepted, map[string]string{"message": "processing"})
		return
	}

	result := dispatcher.Process(r.Context(), event)
	switch result.Outcome {
	case webhook.OutcomeCompleted:
		jsonResponse(w, http.StatusOK, map[string]string{"message": "processed"})
	case webhook.OutcomeSkipped:
		jsonResponse(w, http.StatusOK, map[string]string{"message": "skipped"})
	default:
		http.Error(w, result.Err.Error(), webhook.HTTPStatus(result.Err))
	}
}

// handleSettings serves GET and PUT /settings/{installationID}.
func handleSettings(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/settings/")
	installationID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || installationID <= 0 {
		http.Error(w, "invalid installation ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		setting, err := pgStorage.GetSettings(r.Context(), installationID)
		if err != nil {
			logger.Error("failed to load settings", "installation_id", installationID, "error", err)
			http.Error(w, "failed to load settings", http.StatusInternalServerError)
			return
		}
		if setting == nil {
			http.NotFound(w, r)
			return
		}
		jsonResponse(w, http.StatusOK, setting)

	case http.MethodPut:
		var setting settings.UserSetting
		if err := json.NewDecoder(r.Body).Decode(&setting); err != nil {
			http.Error(w, "invalid settings payload", http.StatusBadRequest)
			return
		}
		setting.InstallationID = installationID
		setting.UpdatedAt = time.Now()
		if err := pgStorage.SaveSettings(r.Context(), &setting); err != nil {
			logger.Error("failed to save settings", "installation_id", installationID, "error", err)
			http.Error(w, "failed to save settings", http.StatusInternalServerError)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"message": "saved"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
