package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/l1"
	"github.com/robotalks/psxpad/pkg/l1/comm"
)

// Hub is an l1.Registrar for websocket clients: events are sent to every
// connected client and commands from any client go to the command handler.
type Hub struct {
	// Addr is the listen address used by Run.
	Addr string

	handler l1.CommandHandler
	lock    sync.RWMutex
	conns   map[*comm.Registrar]*ReadWriter
}

// NewHub creates a Hub.
func NewHub(addr string) *Hub {
	return &Hub{Addr: addr, conns: make(map[*comm.Registrar]*ReadWriter)}
}

// SetHandler sets the handler of received commands.
func (h *Hub) SetHandler(handler l1.CommandHandler) {
	h.lock.Lock()
	h.handler = handler
	h.lock.Unlock()
}

// NumConns returns the number of connected clients.
func (h *Hub) NumConns() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.conns)
}

// HTTPHandler returns the handler accepting websocket clients.
func (h *Hub) HTTPHandler() http.Handler {
	return websocket.Handler(h.ServeConn)
}

// ServeConn runs a client connection until it closes.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	rw := New(conn)
	reg := &comm.Registrar{}
	reg.Init(rw)
	h.lock.Lock()
	reg.Handler = h.handler
	h.conns[reg] = rw
	h.lock.Unlock()
	glog.V(1).Infof("websocket client %s connected", conn.Request().RemoteAddr)

	err := reg.Run(conn.Request().Context())

	h.lock.Lock()
	delete(h.conns, reg)
	h.lock.Unlock()
	glog.V(1).Infof("websocket client %s disconnected: %v", conn.Request().RemoteAddr, err)
}

// SendEvent implements l1.Registrar. A client failing to receive is
// disconnected.
func (h *Hub) SendEvent(ctx context.Context, msg fx.Message) error {
	h.lock.RLock()
	regs := make(map[*comm.Registrar]*ReadWriter, len(h.conns))
	for reg, rw := range h.conns {
		regs[reg] = rw
	}
	h.lock.RUnlock()
	for reg, rw := range regs {
		if err := reg.SendEvent(ctx, msg); err != nil {
			glog.Warningf("websocket send: %v", err)
			rw.Close()
		}
	}
	return nil
}

// Run implements Runnable: it serves clients on Addr until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.Addr)
	if err != nil {
		return err
	}
	glog.Infof("websocket feed on %s", ln.Addr())
	mux := http.NewServeMux()
	mux.Handle("/", h.HTTPHandler())
	err = fx.RunWithContextCloser(ctx, ln, func() error {
		return http.Serve(ln, mux)
	})
	h.lock.RLock()
	for _, rw := range h.conns {
		rw.Close()
	}
	h.lock.RUnlock()
	return err
}
