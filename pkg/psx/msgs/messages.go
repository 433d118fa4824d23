// Package msgs defines the pad messages published by the bridge.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/l1/msgs"
	"github.com/robotalks/psxpad/pkg/psx"
)

// PadStatus is an event reporting the connection and the counters.
type PadStatus struct {
	Connected      bool    `protobuf:"varint,1,opt,name=connected,proto3" json:"connected,omitempty"`
	Mode           string  `protobuf:"bytes,2,opt,name=mode,proto3" json:"mode,omitempty"`
	ModeCode       uint32  `protobuf:"varint,3,opt,name=mode_code,proto3" json:"mode_code,omitempty"`
	Analog         bool    `protobuf:"varint,4,opt,name=analog,proto3" json:"analog,omitempty"`
	Reads          uint64  `protobuf:"varint,5,opt,name=reads,proto3" json:"reads,omitempty"`
	Errors         uint64  `protobuf:"varint,6,opt,name=errors,proto3" json:"errors,omitempty"`
	Skipped        uint64  `protobuf:"varint,7,opt,name=skipped,proto3" json:"skipped,omitempty"`
	Renegotiations uint64  `protobuf:"varint,8,opt,name=renegotiations,proto3" json:"renegotiations,omitempty"`
	SuccessRate    float64 `protobuf:"fixed64,9,opt,name=success_rate,proto3" json:"success_rate,omitempty"`
	Error          string  `protobuf:"bytes,10,opt,name=error,proto3" json:"error,omitempty"`
}

// StatusFrom creates a PadStatus. cause is the reason of the last
// connection change, if any.
func StatusFrom(stats psx.Stats, cause error) *PadStatus {
	m := &PadStatus{
		Connected:      stats.Connected,
		Mode:           stats.Mode.String(),
		ModeCode:       uint32(stats.Mode.Code()),
		Analog:         stats.Analog,
		Reads:          stats.Reads,
		Errors:         stats.Errors,
		Skipped:        stats.Skipped,
		Renegotiations: stats.Renegotiations,
		SuccessRate:    stats.SuccessRate(),
	}
	if cause != nil {
		m.Error = cause.Error()
	}
	return m
}

// NewMessage implements Message.
func (m *PadStatus) NewMessage() fx.Message { return &PadStatus{} }

// TypeID implements SerializableMessage.
func (m *PadStatus) TypeID() uint32 { return PadStatusEventTypeID }

// Serializable implements SerializableMessage.
func (m *PadStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PadStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PadStatus) Reset() { *m = PadStatus{} }

// String implements proto.Message.
func (m *PadStatus) String() string { return proto.CompactTextString(m) }

// PadState is an event carrying a snapshot.
type PadState struct {
	Sequence  uint64 `protobuf:"varint,1,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Timestamp int64  `protobuf:"varint,2,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Buttons   uint32 `protobuf:"varint,3,opt,name=buttons,proto3" json:"buttons,omitempty"`
	Pressed   uint32 `protobuf:"varint,4,opt,name=pressed,proto3" json:"pressed,omitempty"`
	Released  uint32 `protobuf:"varint,5,opt,name=released,proto3" json:"released,omitempty"`
	Axes      []byte `protobuf:"bytes,6,opt,name=axes,proto3" json:"axes,omitempty"`
	Analog    bool   `protobuf:"varint,7,opt,name=analog,proto3" json:"analog,omitempty"`
	Connected bool   `protobuf:"varint,8,opt,name=connected,proto3" json:"connected,omitempty"`
	ModeCode  uint32 `protobuf:"varint,9,opt,name=mode_code,proto3" json:"mode_code,omitempty"`
}

// StateFrom creates a PadState. Axes are reported at the center without
// analog reporting.
func StateFrom(st psx.State) *PadState {
	m := &PadState{
		Sequence:  st.Snapshot.Sequence,
		Buttons:   uint32(st.Snapshot.Buttons),
		Pressed:   uint32(st.Edges.Pressed),
		Released:  uint32(st.Edges.Released),
		Axes:      make([]byte, psx.NumAxes),
		Analog:    st.Analog,
		Connected: st.Connected,
		ModeCode:  uint32(st.Mode.Code()),
	}
	if !st.Snapshot.Timestamp.IsZero() {
		m.Timestamp = st.Snapshot.Timestamp.UnixNano()
	}
	for a := psx.Axis(0); a < psx.NumAxes; a++ {
		m.Axes[a] = st.Axis(a)
	}
	return m
}

// ToState converts the message back.
func (m *PadState) ToState() psx.State {
	st := psx.State{
		Snapshot: psx.Snapshot{
			Buttons:  psx.ButtonState(m.Buttons),
			Axes:     psx.CenteredAxes,
			Sequence: m.Sequence,
		},
		Edges: psx.Edges{
			Pressed:  psx.ButtonState(m.Pressed),
			Released: psx.ButtonState(m.Released),
		},
		Connected: m.Connected,
		Analog:    m.Analog,
	}
	if m.ModeCode != 0 {
		st.Mode = psx.ModeFromCode(byte(m.ModeCode))
	}
	if m.Timestamp != 0 {
		st.Snapshot.Timestamp = time.Unix(0, m.Timestamp)
	}
	copy(st.Snapshot.Axes[:], m.Axes)
	return st
}

// NewMessage implements Message.
func (m *PadState) NewMessage() fx.Message { return &PadState{} }

// TypeID implements SerializableMessage.
func (m *PadState) TypeID() uint32 { return PadStateEventTypeID }

// Serializable implements SerializableMessage.
func (m *PadState) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PadState) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PadState) Reset() { *m = PadState{} }

// String implements proto.Message.
func (m *PadState) String() string { return proto.CompactTextString(m) }

// PadStatusQuery queries the status and the latest state.
type PadStatusQuery struct {
}

// NewMessage implements Message.
func (m *PadStatusQuery) NewMessage() fx.Message { return &PadStatusQuery{} }

// TypeID implements SerializableMessage.
func (m *PadStatusQuery) TypeID() uint32 { return PadStatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *PadStatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PadStatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PadStatusQuery) Reset() { *m = PadStatusQuery{} }

// String implements proto.Message.
func (m *PadStatusQuery) String() string { return proto.CompactTextString(m) }

// PadStatusReply is the response for PadStatusQuery.
type PadStatusReply struct {
	Status *PadStatus `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
	State  *PadState  `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
}

// NewMessage implements Message.
func (m *PadStatusReply) NewMessage() fx.Message { return &PadStatusReply{} }

// TypeID implements SerializableMessage.
func (m *PadStatusReply) TypeID() uint32 { return PadStatusReplyTypeID }

// Serializable implements SerializableMessage.
func (m *PadStatusReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PadStatusReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PadStatusReply) Reset() { *m = PadStatusReply{} }

// String implements proto.Message.
func (m *PadStatusReply) String() string { return proto.CompactTextString(m) }

// PadReconnect asks the controller to negotiate with the pad again.
type PadReconnect struct {
}

// NewMessage implements Message.
func (m *PadReconnect) NewMessage() fx.Message { return &PadReconnect{} }

// TypeID implements SerializableMessage.
func (m *PadReconnect) TypeID() uint32 { return PadReconnectTypeID }

// Serializable implements SerializableMessage.
func (m *PadReconnect) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PadReconnect) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PadReconnect) Reset() { *m = PadReconnect{} }

// String implements proto.Message.
func (m *PadReconnect) String() string { return proto.CompactTextString(m) }

// GroupPad defines the custom group.
const GroupPad = msgs.GroupCustom | 0x00010000

// TypeIDs
const (
	PadStatusEventTypeID uint32 = GroupPad | msgs.TypeIDKindEvent | 0x0000
	PadStateEventTypeID  uint32 = GroupPad | msgs.TypeIDKindEvent | 0x0001
	PadStatusQueryTypeID uint32 = GroupPad | 0x0000
	PadStatusReplyTypeID uint32 = GroupPad | msgs.TypeIDMaskReply | 0x0000
	PadReconnectTypeID   uint32 = GroupPad | 0x0001
)

func init() {
	msgs.MessageTypes[PadStatusEventTypeID] = (*PadStatus)(nil)
	msgs.MessageTypes[PadStateEventTypeID] = (*PadState)(nil)
	msgs.MessageTypes[PadStatusQueryTypeID] = (*PadStatusQuery)(nil)
	msgs.MessageTypes[PadStatusReplyTypeID] = (*PadStatusReply)(nil)
	msgs.MessageTypes[PadReconnectTypeID] = (*PadReconnect)(nil)
}
