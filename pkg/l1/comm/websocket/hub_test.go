package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/l1"
	"github.com/robotalks/psxpad/pkg/l1/msgs"
)

type ping struct {
	Seq uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
}

func (m *ping) NewMessage() fx.Message { return &ping{} }
func (m *ping) TypeID() uint32 { return msgs.GroupCustom | msgs.TypeIDKindEvent | 0x0e00 }
func (m *ping) Serializable() proto.Message { return m }
func (m *ping) ProtoMessage() {}
func (m *ping) Reset() { *m = ping{} }
func (m *ping) String() string { return proto.CompactTextString(m) }

type query struct{ ping }

func (m *query) NewMessage() fx.Message { return &query{} }
func (m *query) TypeID() uint32 { return msgs.GroupCustom | 0x0e00 }

func init() {
	msgs.MessageTypes[(*ping)(nil).TypeID()] = (*ping)(nil)
	msgs.MessageTypes[(*query)(nil).TypeID()] = (*query)(nil)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", "http://localhost/")
	require.NoError(t, err)
	return conn
}

func readTyped(t *testing.T, conn *websocket.Conn) *msgs.Typed {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	pkt, err := New(conn).ReadPacket()
	require.NoError(t, err)
	typed, err := msgs.DecodeTyped(pkt)
	require.NoError(t, err)
	return typed
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub("")
	srv := httptest.NewServer(hub.HTTPHandler())
	defer srv.Close()

	c1, c2 := dial(t, srv), dial(t, srv)
	defer c1.Close()
	defer c2.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.NumConns() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 2, hub.NumConns())

	require.NoError(t, hub.SendEvent(context.Background(), &ping{Seq: 3}))
	for _, c := range []*websocket.Conn{c1, c2} {
		typed := readTyped(t, c)
		require.True(t, typed.IsEvent())
		msg, err := typed.Decode()
		require.NoError(t, err)
		require.Equal(t, uint32(3), msg.(*ping).Seq)
	}
}

func TestHubCommands(t *testing.T) {
	hub := NewHub("")
	hub.SetHandler(l1.HandleCommandFunc(func(_ context.Context, cmd l1.Command) {
		cmd.Done(msgs.NewCommandOK())
	}))
	srv := httptest.NewServer(hub.HTTPHandler())
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()

	typed, err := msgs.TypedFrom(&query{})
	require.NoError(t, err)
	typed.Sequence = 5
	pkt, err := typed.Encode()
	require.NoError(t, err)
	require.NoError(t, New(conn).WritePacket(pkt))

	reply := readTyped(t, conn)
	require.Equal(t, msgs.CommandOKTypeID, reply.TypeId)
	require.Equal(t, uint32(5), reply.Sequence)
}
