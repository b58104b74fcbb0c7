package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher pushes chat events onto per-user Redis channels. Downstream
// consumers (email digests, in-app notification feed) subscribe to
// "notifications:<user_id>". Publishing happens after the message row is
// committed, which is why clients re-fetch shortly after a send completes.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

type MessageEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Text           string `json:"text"`
}

// NewMessage notifies the recipient about a freshly sent message. Failures
// are logged and dropped; notification delivery must never fail the send.
func (p *Publisher) NewMessage(ctx context.Context, recipient uuid.UUID, ev MessageEvent) {
	if p == nil || p.rdb == nil {
		return
	}
	ev.Type = "chat_message"
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal event: %v", err)
		return
	}
	if err := p.rdb.Publish(ctx, "notifications:"+recipient.String(), payload).Err(); err != nil {
		log.Printf("notify: publish to %s: %v", recipient, err)
	}
}
