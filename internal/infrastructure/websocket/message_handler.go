package websocket

import (
	"encoding/json"
	"time"

	"storecare/internal/domain/entity"
	"storecare/internal/infrastructure/ratelimit"
	"storecare/internal/usecase"
	"storecare/pkg/logger"
)

// Inbound frame types
const (
	MessageTypePing              = "ping"
	MessageTypeOpenConversation  = "open_conversation"
	MessageTypeCloseConversation = "close_conversation"
	MessageTypeDraft             = "draft"
	MessageTypeSendMessage       = "send_message"
)

// Outbound frame types
const (
	MessageTypePong           = "pong"
	MessageTypeState          = "state"
	MessageTypeHistory        = "history"
	MessageTypeMessage        = "message"
	MessageTypeScrollToLatest = "scroll_to_latest"
	MessageTypeSendAck        = "send_ack"
	MessageTypeError          = "error"
)

type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type outboundMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type OpenConversationData struct {
	ConversationID string `json:"conversation_id"`
}

type ContentData struct {
	Content string `json:"content"`
}

type StateData struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	State          usecase.SyncState `json:"state"`
	Loading        bool              `json:"loading"`
}

type HistoryData struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []*entity.Message `json:"messages"`
}

type MessageData struct {
	ConversationID string          `json:"conversation_id"`
	Message        *entity.Message `json:"message"`
	FromSelf       bool            `json:"from_self"`
}

type SendAckData struct {
	Accepted bool `json:"accepted"`
}

type ErrorData struct {
	Code     string  `json:"code"`
	Error    string  `json:"error"`
	WaitTime float64 `json:"wait_time,omitempty"`
}

// HandleClientMessage dispatches one inbound frame to the screen.
func (c *Client) HandleClientMessage(raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug("WebSocket: session %s sent malformed frame: %v", c.ID, err)
		c.sendError("invalid_format", "Invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.send(frame(MessageTypePong, map[string]string{"status": "alive"}))

	case MessageTypeOpenConversation:
		var data OpenConversationData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.ConversationID == "" {
			c.sendError("invalid_payload", "conversation_id is required")
			return
		}
		c.screen.SetConversation(data.ConversationID)

	case MessageTypeCloseConversation:
		c.screen.SetConversation("")

	case MessageTypeDraft:
		var data ContentData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_payload", "Invalid draft payload")
			return
		}
		c.screen.UpdateDraft(data.Content)

	case MessageTypeSendMessage:
		c.handleSendMessage(msg.Data)

	default:
		logger.Debug("WebSocket: session %s sent unknown type %q", c.ID, msg.Type)
		c.sendError("unknown_type", "Unknown message type")
	}
}

func (c *Client) handleSendMessage(raw json.RawMessage) {
	var data ContentData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			c.sendError("invalid_payload", "Invalid send message payload")
			return
		}
	} else {
		data.Content = c.screen.Draft()
	}

	if identity := c.screen.Identity(); identity != nil && c.limits != nil {
		if allowed, wait := c.limits.Allow(identity.ID, ratelimit.ActionSendMessage); !allowed {
			logger.Info("WebSocket: user %s rate limited, wait %v", identity.ID, wait)
			c.send(frame(MessageTypeError, ErrorData{
				Code:     "rate_limit_exceeded",
				Error:    "You are sending messages too quickly. Please slow down.",
				WaitTime: wait.Seconds(),
			}))
			return
		}
	}

	accepted := c.screen.Send(c.ctx, data.Content)
	c.send(frame(MessageTypeSendAck, SendAckData{Accepted: accepted}))
}

func frameForEvent(event usecase.SyncEvent) outboundMessage {
	switch event.Kind {
	case usecase.EventHistoryLoaded:
		return frame(MessageTypeHistory, HistoryData{ConversationID: event.ConversationID, Messages: event.Messages})
	case usecase.EventNewMessage:
		return frame(MessageTypeMessage, MessageData{ConversationID: event.ConversationID, Message: event.Message, FromSelf: event.FromSelf})
	case usecase.EventScrollToLatest:
		return frame(MessageTypeScrollToLatest, OpenConversationData{ConversationID: event.ConversationID})
	case usecase.EventAccessDenied:
		return frame(MessageTypeError, ErrorData{Code: "forbidden", Error: "You are not a participant of conversation " + event.ConversationID})
	default:
		return frame(MessageTypeState, StateData{ConversationID: event.ConversationID, State: event.State, Loading: event.Loading})
	}
}

func frame(kind string, data interface{}) outboundMessage {
	return outboundMessage{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (c *Client) sendError(code, message string) {
	c.send(frame(MessageTypeError, ErrorData{Code: code, Error: message}))
}

// send queues a frame; it is dropped if the client is not keeping up.
func (c *Client) send(msg outboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s frame for session %s: %v", msg.Type, c.ID, err)
		return
	}

	select {
	case c.Send <- payload:
	default:
		logger.Warn("WebSocket: session %s send buffer full, dropping %s frame", c.ID, msg.Type)
	}
}
