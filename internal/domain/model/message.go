package model

import "time"

type Message struct {
	Sender    Principal
	Recipient Principal
	Content   string
	Timestamp time.Time
}

// Between reports whether the message was exchanged by a and b in either direction.
func (m Message) Between(a, b Principal) bool {
	return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
}

// Counterpart returns the other party of the message as seen by self.
func (m Message) Counterpart(self Principal) (Principal, bool) {
	switch {
	case m.Sender == self && m.Recipient != self:
		return m.Recipient, true
	case m.Recipient == self && m.Sender != self:
		return m.Sender, true
	default:
		return "", false
	}
}
