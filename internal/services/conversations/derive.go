package conversations

import (
	"sort"
	"strings"
	"time"

	"github.com/caffeinepub/connect-dating/internal/domain/model"
)

// Thread returns the messages exchanged by self and partner in either direction,
// oldest first. The order does not depend on the order of messages.
func Thread(messages []model.Message, self, partner model.Principal) []model.Message {
	out := make([]model.Message, 0)
	for _, msg := range messages {
		if msg.Between(self, partner) {
			out = append(out, msg)
		}
	}
	SortByTimestamp(out)
	return out
}

// SortByTimestamp orders messages oldest first. Equal timestamps fall back to
// sender, recipient and content text so the result is a total order.
func SortByTimestamp(messages []model.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messageBefore(messages[i], messages[j])
	})
}

func messageBefore(a, b model.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if c := strings.Compare(a.Sender.String(), b.Sender.String()); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.Recipient.String(), b.Recipient.String()); c != 0 {
		return c < 0
	}
	return a.Content < b.Content
}

type Partner struct {
	Principal model.Principal
	LastAt    time.Time
	Preview   string
}

// Partners lists everyone self has exchanged messages with, most recent conversation
// first. Ties are ordered by principal text.
func Partners(messages []model.Message, self model.Principal) []Partner {
	latest := make(map[model.Principal]model.Message)
	for _, msg := range messages {
		other, ok := msg.Counterpart(self)
		if !ok {
			continue
		}
		current, seen := latest[other]
		if !seen || messageBefore(current, msg) {
			latest[other] = msg
		}
	}

	out := make([]Partner, 0, len(latest))
	for other, msg := range latest {
		out = append(out, Partner{Principal: other, LastAt: msg.Timestamp, Preview: msg.Content})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].LastAt.After(out[j].LastAt)
		}
		return strings.Compare(out[i].Principal.String(), out[j].Principal.String()) < 0
	})
	return out
}
