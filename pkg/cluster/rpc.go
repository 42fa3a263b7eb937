package cluster

import (
	"context"
	"sync"

	"github.com/emberql/emberql/pkg/errs"
)

// PeerRPC is the cross-peer transport every cluster-aware subsystem
// (replication propagation, consistency checks, phase coordination)
// sends through. Every such call is asynchronous with
// a hard deadline; callers pass ctx with that deadline already attached.
type PeerRPC interface {
	Send(ctx context.Context, peer string, method string, payload any) (any, error)
}

// Handler processes one inbound RPC method call.
type Handler func(ctx context.Context, from string, payload any) (any, error)

// LoopbackRPC is an in-process PeerRPC: every registered peer is a
// handler function running in the same process, used for tests and for
// the CLI's own in-process handlers (replication.apply, health.ping). It
// has no network surface at all.
type LoopbackRPC struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler // peer -> method -> handler
}

// NewLoopbackRPC constructs an empty in-process transport.
func NewLoopbackRPC() *LoopbackRPC {
	return &LoopbackRPC{handlers: make(map[string]map[string]Handler)}
}

// Register binds method on peer to fn, so a Send to (peer, method)
// invokes fn directly.
func (l *LoopbackRPC) Register(peer, method string, fn Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers[peer] == nil {
		l.handlers[peer] = make(map[string]Handler)
	}
	l.handlers[peer][method] = fn
}

// Send dispatches to the registered handler, honoring ctx cancellation
// before invocation.
func (l *LoopbackRPC) Send(ctx context.Context, peer, method string, payload any) (any, error) {
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(errs.CodeTimeout, ctx.Err())
	default:
	}

	l.mu.RLock()
	peerHandlers, ok := l.handlers[peer]
	var fn Handler
	if ok {
		fn, ok = peerHandlers[method]
	}
	l.mu.RUnlock()

	if !ok {
		return nil, errs.New(errs.CodeConnectionFailed, "no handler for %s.%s", peer, method)
	}
	return fn(ctx, "", payload)
}
