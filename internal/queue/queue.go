// ABOUTME: Per-conversation FIFO queues with one serialized worker goroutine each
// ABOUTME: Guarantees ordered, non-overlapping turn processing within a conversation

package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// replyOnError is the user-visible reply when a turn fails past the
// orchestrator's own error handling. The worker never lets an error
// terminate its loop.
const replyOnError = "Sorry, something went wrong while processing your message."

// Responder is what a worker needs from the orchestration layer.
type Responder interface {
	Respond(ctx context.Context, ownerID, conversationID, userText string, ts time.Time) (string, error)
}

// Inbound is one platform message waiting to be processed. Reply delivers
// the final text back to the platform layer; a nil Reply drops the text.
type Inbound struct {
	OwnerID        string
	ConversationID string
	Text           string
	Timestamp      time.Time
	Reply          func(text string)
}

// worker holds one conversation's pending messages and its stop signal.
// pending is an unbounded slice so enqueue never blocks; wake nudges the
// goroutine when work arrives.
type worker struct {
	mu      sync.Mutex
	pending []Inbound
	wake    chan struct{}
	stop    chan struct{}
}

// push appends a message to the tail and signals the worker.
func (w *worker) push(msg Inbound) {
	w.mu.Lock()
	w.pending = append(w.pending, msg)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the head of the queue.
func (w *worker) pop() (Inbound, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return Inbound{}, false
	}
	msg := w.pending[0]
	w.pending = w.pending[1:]
	return msg, true
}

// Manager owns one worker per active conversation. Workers for distinct
// conversations run concurrently; within a conversation, turn N+1 starts
// only after turn N's orchestration has fully completed.
//
// Workers run under the manager's own lifecycle context, never a caller's:
// an enqueuer's context may be long dead by the time a queued turn runs.
// Stop channels are the only per-conversation cancellation primitive.
type Manager struct {
	mu        sync.Mutex
	workers   map[string]*worker
	responder Responder
	logger    *slog.Logger
	wg        sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a queue manager.
func NewManager(responder Responder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		workers:   make(map[string]*worker),
		responder: responder,
		logger:    logger.With("component", "queue"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue appends a message to its conversation's queue, spawning exactly
// one worker for the conversation if none is running.
func (m *Manager) Enqueue(msg Inbound) {
	m.mu.Lock()
	w, ok := m.workers[msg.ConversationID]
	if !ok {
		w = &worker{
			wake: make(chan struct{}, 1),
			stop: make(chan struct{}),
		}
		m.workers[msg.ConversationID] = w
		m.wg.Add(1)
		go m.run(msg.ConversationID, w)
	}
	m.mu.Unlock()

	w.push(msg)
}

// run is the worker loop for one conversation. Orchestration errors are
// converted to a user-visible failure reply; the loop only exits on the
// stop signal.
func (m *Manager) run(conversationID string, w *worker) {
	defer m.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		msg, ok := w.pop()
		if !ok {
			select {
			case <-w.stop:
				return
			case <-w.wake:
			}
			continue
		}

		reply, err := m.responder.Respond(m.ctx, msg.OwnerID, msg.ConversationID, msg.Text, msg.Timestamp)
		if err != nil {
			m.logger.Error("turn failed",
				"conversation", conversationID,
				"owner", msg.OwnerID,
				"error", err)
			reply = replyOnError
		}
		if msg.Reply != nil {
			msg.Reply(reply)
		}
	}
}

// Stop tears down one conversation's worker, for platform-side archival.
// Messages still queued are dropped; the current turn finishes first.
func (m *Manager) Stop(conversationID string) {
	m.mu.Lock()
	w, ok := m.workers[conversationID]
	if ok {
		delete(m.workers, conversationID)
	}
	m.mu.Unlock()

	if ok {
		close(w.stop)
	}
}

// Close stops every worker and waits for in-flight turns to finish, then
// cancels the lifecycle context. Cancellation comes last so a draining
// turn is not cut off mid-call.
func (m *Manager) Close() {
	m.mu.Lock()
	for id, w := range m.workers {
		close(w.stop)
		delete(m.workers, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.cancel()
}

// active reports whether a conversation currently has a worker.
func (m *Manager) active(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[conversationID]
	return ok
}
