package alephzero

import (
	"errors"
	"sync"
)

// ErrCancelled is returned by PrpcConnection.Reply after the client side
// cancelled the connection.
var ErrCancelled = errors.New("prpc connection cancelled")

// RPCHandler serves one-shot RPC requests on a topic.
type RPCHandler func(req Packet) Packet

// PrpcHandler serves progressive-RPC connections on a topic. The handler
// streams replies via conn.Reply and should stop when Reply errors or
// conn.Cancelled fires.
type PrpcHandler func(conn *PrpcConnection)

// ServeRPC registers the server side of an RPC topic.
func (r *Runtime) ServeRPC(topic string, h RPCHandler) {
	r.ensureTopic(RPCPath(topic))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rpcHandlers[RPCPath(topic)] = h
}

// ServePrpc registers the server side of a progressive-RPC topic.
func (r *Runtime) ServePrpc(topic string, h PrpcHandler) {
	r.ensureTopic(PrpcPath(topic))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prpcHandlers[PrpcPath(topic)] = h
}

func (r *Runtime) rpcHandler(path string) RPCHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rpcHandlers[path]
}

func (r *Runtime) prpcHandler(path string) PrpcHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prpcHandlers[path]
}

// RpcClient issues one-shot RPCs against a topic.
type RpcClient struct {
	rt   *Runtime
	path string
	wg   sync.WaitGroup
}

// NewRpcClient opens an RPC client for a topic.
func (r *Runtime) NewRpcClient(topic string) *RpcClient {
	return &RpcClient{rt: r, path: RPCPath(topic)}
}

// Send issues a request. onReply runs on a client-owned goroutine once the
// server responds. If no server is registered, no reply ever arrives.
func (c *RpcClient) Send(req Packet, onReply func(Packet)) {
	h := c.rt.rpcHandler(c.path)
	if h == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		onReply(h(req))
	}()
}

// Close joins any in-flight request goroutines.
func (c *RpcClient) Close() error {
	c.wg.Wait()
	return nil
}

// PrpcConnection is the server-side handle of one progressive-RPC call.
type PrpcConnection struct {
	// Request is the packet that opened the connection.
	Request Packet

	reply     func(Packet, bool)
	cancelled chan struct{}
	once      sync.Once
}

// Reply streams one response packet. done marks the final packet. Returns
// ErrCancelled once the client has cancelled.
func (pc *PrpcConnection) Reply(pkt Packet, done bool) error {
	select {
	case <-pc.cancelled:
		return ErrCancelled
	default:
	}
	pc.reply(pkt, done)
	return nil
}

// Cancelled fires when the client cancels the connection.
func (pc *PrpcConnection) Cancelled() <-chan struct{} { return pc.cancelled }

func (pc *PrpcConnection) cancel() {
	pc.once.Do(func() { close(pc.cancelled) })
}

// PrpcClient issues progressive RPCs against a topic.
type PrpcClient struct {
	rt   *Runtime
	path string

	mu    sync.Mutex
	conns map[string]*PrpcConnection
	wg    sync.WaitGroup
}

// NewPrpcClient opens a progressive-RPC client for a topic.
func (r *Runtime) NewPrpcClient(topic string) *PrpcClient {
	return &PrpcClient{rt: r, path: PrpcPath(topic), conns: make(map[string]*PrpcConnection)}
}

// Connect opens a connection identified by the request packet's ID. onReply
// runs serially on the server handler's goroutine for every streamed packet.
func (c *PrpcClient) Connect(req Packet, onReply func(pkt Packet, done bool)) {
	h := c.rt.prpcHandler(c.path)
	if h == nil {
		return
	}

	pc := &PrpcConnection{Request: req, cancelled: make(chan struct{})}
	pc.reply = func(pkt Packet, done bool) {
		onReply(pkt, done)
		if done {
			c.mu.Lock()
			delete(c.conns, req.ID)
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.conns[req.ID] = pc
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h(pc)
	}()
}

// Cancel stops the connection with the given ID. The server side observes
// the cancellation on its next Reply.
func (c *PrpcClient) Cancel(id string) {
	c.mu.Lock()
	pc, ok := c.conns[id]
	if ok {
		delete(c.conns, id)
	}
	c.mu.Unlock()
	if ok {
		pc.cancel()
	}
}

// Close cancels all connections and joins handler goroutines. Callbacks
// blocked in a flow control wait must be released before Close is called.
func (c *PrpcClient) Close() error {
	c.mu.Lock()
	conns := make([]*PrpcConnection, 0, len(c.conns))
	for _, pc := range c.conns {
		conns = append(conns, pc)
	}
	c.conns = make(map[string]*PrpcConnection)
	c.mu.Unlock()

	for _, pc := range conns {
		pc.cancel()
	}
	c.wg.Wait()
	return nil
}
