// ABOUTME: Top-level wiring of pool, model client, search client, orchestrator, and queues
// ABOUTME: Owns component lifecycle from config load through graceful shutdown

package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/connpool"
	"github.com/parley-chat/parley/internal/dedupe"
	"github.com/parley-chat/parley/internal/llm"
	"github.com/parley-chat/parley/internal/orchestrator"
	"github.com/parley-chat/parley/internal/queue"
	"github.com/parley-chat/parley/internal/search"
)

// Gateway connects the messaging-platform boundary to the response pipeline.
// Platform glue delivers inbound messages through HandleInbound; everything
// downstream (queueing, history, model calls, persistence) is internal.
type Gateway struct {
	config       *config.Config
	pool         *connpool.Pool
	orchestrator *orchestrator.Orchestrator
	queues       *queue.Manager
	logger       *slog.Logger

	// dedupe drops platform redeliveries before they reach a queue
	dedupe *dedupe.Cache
}

// New wires the gateway components from a validated config.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool := connpool.New(cfg.Storage.Dir, cfg.Cache.Capacity, logger)

	model := llm.NewClient(llm.Options{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Logger:  logger,
	})

	var searcher orchestrator.Searcher
	if cfg.Search.Enabled {
		searcher = search.NewClient(search.ClientOptions{
			BaseURL: cfg.Search.BaseURL,
			APIKey:  cfg.Search.APIKey,
			Logger:  logger,
		})
	}

	orch := orchestrator.New(orchestrator.Options{
		Pool:         pool,
		Model:        model,
		Searcher:     searcher,
		ModelName:    cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		SearchOpts: search.Options{
			NumResults: cfg.Search.NumResults,
			Highlights: cfg.Search.Highlights,
		},
		Logger: logger,
	})

	return &Gateway{
		config:       cfg,
		pool:         pool,
		orchestrator: orch,
		queues:       queue.NewManager(orch, logger),
		logger:       logger.With("component", "gateway"),
		dedupe:       dedupe.New(5*time.Minute, 100_000),
	}, nil
}

// HandleInbound accepts one platform message and queues it behind any
// earlier messages in the same conversation. It returns immediately; the
// reply callback fires from the conversation's worker once the turn
// completes, under the queue manager's lifecycle rather than the caller's.
// Splitting oversized replies is the platform layer's job.
//
// messageID is the platform's delivery ID; redeliveries of an already
// seen ID are dropped silently. Pass "" when the platform has none.
func (g *Gateway) HandleInbound(ownerID, conversationID, messageID, text string, reply func(string)) {
	if messageID != "" && g.dedupe.CheckAndMark(messageID) {
		g.logger.Debug("dropping duplicate message",
			"conversation_id", conversationID,
			"message_id", messageID)
		return
	}
	g.queues.Enqueue(queue.Inbound{
		OwnerID:        ownerID,
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
		Reply:          reply,
	})
}

// NewConversation allocates a conversation ID guaranteed unused in the
// owner's database.
func (g *Gateway) NewConversation(ctx context.Context, ownerID string) (string, error) {
	handle, err := g.pool.Acquire(ownerID)
	if err != nil {
		return "", err
	}
	defer g.pool.Release(ownerID)
	return orchestrator.NewConversationID(ctx, handle)
}

// StopConversation tears down a conversation's worker, dropping anything
// still queued. History stays on disk; a later message starts a fresh
// worker for the same conversation.
func (g *Gateway) StopConversation(conversationID string) {
	g.queues.Stop(conversationID)
}

// Run starts the background sweeper and blocks until ctx is canceled,
// then shuts the gateway down.
func (g *Gateway) Run(ctx context.Context) error {
	g.pool.StartSweeper(g.config.Cache.TTL, g.config.Cache.SweepInterval)
	g.logger.Info("gateway started",
		"model", g.config.LLM.Model,
		"storage_dir", g.config.Storage.Dir,
		"cache_capacity", g.config.Cache.Capacity,
		"search_enabled", g.config.Search.Enabled)

	<-ctx.Done()

	g.logger.Info("shutting down")
	g.Shutdown()
	return nil
}

// Shutdown drains in-flight turns and closes every open database handle.
// Queued-but-unstarted messages are dropped; their history rebuilds any
// future turn from disk.
func (g *Gateway) Shutdown() {
	g.queues.Close()
	g.pool.Clear()
	g.dedupe.Close()
	g.logger.Info("shutdown complete")
}
