// Package events defines the frames pushed to realtime subscribers and the
// topics they are published on.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// MessageType is the "type" field of an outbound frame.
type MessageType string

const (
	TypeTimerState           MessageType = "timer_state"
	TypeTimerUpdate          MessageType = "timer_update"
	TypeError                MessageType = "error"
	TypeFlexibleNotification MessageType = "flexible_notification"
	TypeNotification         MessageType = "notification"
)

// Topic names a broadcast channel.
type Topic string

// GroupTopic is the channel every connection of a group subscribes to.
func GroupTopic(groupID int64) Topic {
	return Topic("group:" + strconv.FormatInt(groupID, 10))
}

// UserTopic is a user's personal channel for out-of-band notifications.
func UserTopic(userID int64) Topic {
	return Topic("user:" + strconv.FormatInt(userID, 10))
}

// ParseTopic splits a topic into its kind ("group" or "user") and id.
func ParseTopic(t Topic) (kind string, id int64, err error) {
	kind, rawID, ok := strings.Cut(string(t), ":")
	if !ok || (kind != "group" && kind != "user") {
		return "", 0, fmt.Errorf("malformed topic %q", t)
	}
	id, err = strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed topic %q: %w", t, err)
	}
	return kind, id, nil
}

// Message is one outbound frame.
type Message struct {
	Type     MessageType       `json:"type"`
	Action   string            `json:"action,omitempty"`
	Data     any               `json:"data,omitempty"`
	SyncMode models.SyncPolicy `json:"sync_mode,omitempty"`
	Message  string            `json:"message,omitempty"`

	// ActorKey names the attribution field ("started_by", "paused_by", ...)
	// written at the top level of the frame with Actor as its value.
	ActorKey string `json:"-"`
	Actor    string `json:"-"`
}

// MarshalJSON flattens the attribution field into the frame.
func (m Message) MarshalJSON() ([]byte, error) {
	type frame Message
	b, err := json.Marshal(frame(m))
	if err != nil || m.ActorKey == "" {
		return b, err
	}

	key, err := json.Marshal(m.ActorKey)
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(m.Actor)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(b[:len(b)-1])
	buf.WriteByte(',')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(value)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TimerState is the full snapshot sent to a connection on connect and sync.
func TimerState(snapshot any) *Message {
	return &Message{Type: TypeTimerState, Data: snapshot}
}

// TimerUpdate announces a state change to a group.
func TimerUpdate(action models.Action, snapshot any, policy models.SyncPolicy, actor string) *Message {
	return &Message{
		Type:     TypeTimerUpdate,
		Action:   action.Broadcast(),
		Data:     snapshot,
		SyncMode: policy,
		ActorKey: action.AttributionKey(),
		Actor:    actor,
	}
}

// Error is an in-band failure report. The connection stays open.
func Error(message string) *Message {
	return &Message{Type: TypeError, Message: message}
}

// MemberStarted tells a FLEXIBLE group that someone started their own timer.
func MemberStarted(groupID int64, username string) *Message {
	return &Message{
		Type:   TypeFlexibleNotification,
		Action: "member_started",
		Data: map[string]any{
			"username": username,
			"message":  username + " started a focus session",
			"group_id": groupID,
		},
		SyncMode: models.SyncPolicyFlexible,
	}
}

// Notification pushes a stored notification to its recipient.
func Notification(n *models.Notification) *Message {
	return &Message{Type: TypeNotification, Data: n}
}

// Publisher delivers frames to every subscriber of a topic. Delivery is
// best effort and at most once.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, msg *Message) error
}
