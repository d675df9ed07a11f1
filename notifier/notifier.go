package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/agentfabric/core/capability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultDispatchEventsPerSecond and defaultDispatchBurst bound how fast
// the consumer drains the queue, so
// a burst of registry churn cannot monopolize the process; it is well
// above any realistic steady-state event rate.
const (
	defaultDispatchEventsPerSecond = 1000
	defaultDispatchBurst           = 200
)

// WorkflowNotifier is a single-consumer ordered event bus. notify_*
// methods enqueue an event and return immediately; a single goroutine
// dispatches events to kind-specific handlers in enqueue order. Handler
// errors are logged but never stop the consumer.
type WorkflowNotifier struct {
	queueMu sync.Mutex
	queue   []Event
	wake    chan struct{}

	handlersMu sync.RWMutex
	handlers   map[Kind][]Handler

	// agentLocksMu/agentLocks serialize enqueue for agent_recovery events
	// per agent, so two concurrent recoveries for the same agent are
	// observed by the consumer in a single, deterministic order.
	agentLocksMu sync.Mutex
	agentLocks   map[string]*sync.Mutex

	done    chan struct{}
	closed  chan struct{}
	once    sync.Once
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New starts the notifier's consumer goroutine.
func New(logger *zap.Logger) *WorkflowNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &WorkflowNotifier{
		wake:       make(chan struct{}, 1),
		handlers:   make(map[Kind][]Handler),
		agentLocks: make(map[string]*sync.Mutex),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
		logger:     logger.With(zap.String("component", "workflow_notifier")),
		limiter:    rate.NewLimiter(defaultDispatchEventsPerSecond, defaultDispatchBurst),
	}
	go n.consume()
	return n
}

// Subscribe registers handler for events of kind.
func (n *WorkflowNotifier) Subscribe(kind Kind, handler Handler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	n.handlers[kind] = append(n.handlers[kind], handler)
}

func (n *WorkflowNotifier) enqueue(e Event) {
	e.Timestamp = time.Now()
	n.queueMu.Lock()
	n.queue = append(n.queue, e)
	n.queueMu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *WorkflowNotifier) agentLock(agentID string) *sync.Mutex {
	n.agentLocksMu.Lock()
	defer n.agentLocksMu.Unlock()
	l, ok := n.agentLocks[agentID]
	if !ok {
		l = &sync.Mutex{}
		n.agentLocks[agentID] = l
	}
	return l
}

// NotifyAgentRegistered enqueues an agent_registered event.
func (n *WorkflowNotifier) NotifyAgentRegistered(agentID string) {
	n.enqueue(Event{Kind: KindAgentRegistered, AgentID: agentID})
}

// NotifyAgentUnregistered enqueues an agent_unregistered event.
func (n *WorkflowNotifier) NotifyAgentUnregistered(agentID string) {
	n.enqueue(Event{Kind: KindAgentUnregistered, AgentID: agentID})
}

// NotifyAgentRecovery enqueues an agent_recovery event, serialized per
// agent so concurrent recoveries of the same agent land in one order.
func (n *WorkflowNotifier) NotifyAgentRecovery(agentID string, errorKind string, success bool) {
	lock := n.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()
	n.enqueue(Event{
		Kind:    KindAgentRecovery,
		AgentID: agentID,
		Payload: map[string]any{"error_kind": errorKind, "success": success},
	})
}

// NotifyCapabilityChange enqueues a capability_change event.
func (n *WorkflowNotifier) NotifyCapabilityChange(agentID string, added, removed []capability.Capability) {
	n.enqueue(Event{
		Kind:    KindCapabilityChange,
		AgentID: agentID,
		Payload: map[string]any{"added": added, "removed": removed},
	})
}

// NotifyWorkflowAssembled enqueues a workflow_assembled event.
func (n *WorkflowNotifier) NotifyWorkflowAssembled(workflowID string, stepCount int) {
	n.enqueue(Event{
		Kind:    KindWorkflowAssembled,
		Payload: map[string]any{"workflow_id": workflowID, "step_count": stepCount},
	})
}

func (n *WorkflowNotifier) dispatch(e Event) {
	_ = n.limiter.Wait(context.Background())

	n.handlersMu.RLock()
	handlers := append([]Handler(nil), n.handlers[e.Kind]...)
	n.handlersMu.RUnlock()

	for _, h := range handlers {
		if err := h(e); err != nil {
			n.logger.Warn("notifier handler failed",
				zap.String("kind", string(e.Kind)),
				zap.String("agent_id", e.AgentID),
				zap.Error(err))
		}
	}
}

func (n *WorkflowNotifier) popAll() []Event {
	n.queueMu.Lock()
	defer n.queueMu.Unlock()
	if len(n.queue) == 0 {
		return nil
	}
	batch := n.queue
	n.queue = nil
	return batch
}

func (n *WorkflowNotifier) consume() {
	defer close(n.closed)
	for {
		select {
		case <-n.wake:
			for _, e := range n.popAll() {
				n.dispatch(e)
			}
		case <-n.done:
			for _, e := range n.popAll() {
				n.dispatch(e)
			}
			return
		}
	}
}

// Shutdown cancels the consumer, drains the queue, and returns once the
// consumer goroutine has quiesced or ctx is done first.
func (n *WorkflowNotifier) Shutdown(ctx context.Context) error {
	n.once.Do(func() { close(n.done) })
	select {
	case <-n.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
