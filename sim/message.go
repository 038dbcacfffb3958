package sim

// Message carries a payload from one LP to another. Seq and SentAt are
// filled in by the sending runtime; user code only picks the destination,
// the timestamp and the payload.
type Message struct {
	Payload     []byte
	Timestamp   Time
	Sender      LPID
	Destination LPID
	Seq         uint64 // per-sender, strictly increasing
	SentAt      Stamp  // stamp of the work item that produced the message
}

// Stamp returns the message's position in the receiver's processing order.
func (m Message) Stamp() Stamp {
	return Stamp{Time: m.Timestamp, Class: ClassMessage, Sender: m.Sender, Seq: m.Seq}
}

// Anti returns the cancellation record for m.
func (m Message) Anti() AntiMessage {
	return AntiMessage{Sender: m.Sender, Destination: m.Destination, Timestamp: m.Timestamp, Seq: m.Seq}
}

// AntiMessage cancels a previously sent Message with the same identity.
type AntiMessage struct {
	Sender      LPID
	Destination LPID
	Timestamp   Time
	Seq         uint64
}

// Matches reports whether a cancels m.
func (a AntiMessage) Matches(m Message) bool {
	return a.Sender == m.Sender && a.Destination == m.Destination &&
		a.Timestamp == m.Timestamp && a.Seq == m.Seq
}

// Stamp returns the stamp of the positive message a cancels.
func (a AntiMessage) Stamp() Stamp {
	return Stamp{Time: a.Timestamp, Class: ClassMessage, Sender: a.Sender, Seq: a.Seq}
}

// Annihilator is an ordered batch of antimessages.
type Annihilator []AntiMessage

// TransferKind tells the two wire forms apart.
type TransferKind uint8

const (
	KindMessage TransferKind = iota
	KindAntiMessage
)

// Transferable is the value held by one ring-buffer slot: either a
// Message or an antimessage for one.
type Transferable struct {
	Kind    TransferKind
	Message Message
}

// Positive wraps m for transport.
func Positive(m Message) Transferable {
	return Transferable{Kind: KindMessage, Message: m}
}

// Negative wraps a for transport.
func Negative(a AntiMessage) Transferable {
	return Transferable{Kind: KindAntiMessage, Message: Message{
		Timestamp:   a.Timestamp,
		Sender:      a.Sender,
		Destination: a.Destination,
		Seq:         a.Seq,
	}}
}

// IsAnti reports whether t is an antimessage.
func (t Transferable) IsAnti() bool { return t.Kind == KindAntiMessage }

// Anti returns the antimessage carried by t.
func (t Transferable) Anti() AntiMessage { return t.Message.Anti() }

// To returns the destination LP.
func (t Transferable) To() LPID { return t.Message.Destination }

// From returns the sending LP.
func (t Transferable) From() LPID { return t.Message.Sender }

// Timestamp returns the receive time of the carried message.
func (t Transferable) Timestamp() Time { return t.Message.Timestamp }
