// Package websocket connects the bot to the Lark long connection and feeds
// inbound chat messages into the dispatcher.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/pkg/utils"
)

// Lark message types the adapter understands
const (
	messageTypeText  = "text"
	messageTypeImage = "image"
)

// Lark redelivers events that are not acknowledged in time
const redeliveryWindow = 10 * time.Minute

// MessageHandler routes one inbound message
type MessageHandler interface {
	Dispatch(ctx context.Context, msg dispatcher.Message) (*dispatcher.Reply, error)
}

// ReplySender delivers reply text
type ReplySender interface {
	SendText(ctx context.Context, userID string, text string) error
	SendToChat(ctx context.Context, chatID string, text string) error
}

// LarkAdapter wraps the Lark WebSocket SDK client and turns
// im.message.receive_v1 events into dispatcher messages.
type LarkAdapter struct {
	appID     string
	appSecret string
	handler   MessageHandler
	sender    ReplySender
	seen      *cache.Cache
	now       func() time.Time
	logger    *zap.Logger

	wsClient *larkws.Client
	mu       sync.RWMutex
	started  bool
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
}

// NewLarkAdapter creates a new Lark WebSocket adapter.
func NewLarkAdapter(cfg LarkAdapterConfig, handler MessageHandler, sender ReplySender, logger *zap.Logger) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		handler:   handler,
		sender:    sender,
		seen:      cache.New(redeliveryWindow, redeliveryWindow),
		now:       time.Now,
		logger:    logger,
	}
}

// Start opens the long connection and blocks until ctx is cancelled or the
// client fails.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}

	// Verification token and encrypt key are not used in long connection mode
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(a.handleMessage)

	a.wsClient = larkws.NewClient(
		a.appID,
		a.appSecret,
		larkws.WithEventHandler(sdkDispatcher),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	a.started = true
	a.mu.Unlock()

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.appID))

	if err := a.wsClient.Start(ctx); err != nil {
		a.logger.Error("Lark WebSocket client error", zap.Error(err))
		return fmt.Errorf("websocket client error: %w", err)
	}
	return nil
}

// Stop marks the adapter stopped. The SDK client itself stops when the
// context passed to Start is cancelled.
func (a *LarkAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	a.logger.Info("Lark WebSocket adapter stopped")
	return nil
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

func (a *LarkAdapter) handleMessage(ctx context.Context, evt *larkim.P2MessageReceiveV1) error {
	msg, ok := ParseMessage(evt, a.now)
	if !ok {
		a.logger.Debug("Ignoring unsupported Lark message")
		return nil
	}

	if msg.MessageID != "" {
		if err := a.seen.Add(msg.MessageID, struct{}{}, cache.DefaultExpiration); err != nil {
			a.logger.Debug("Skipping redelivered message", zap.String("message_id", msg.MessageID))
			return nil
		}
	}

	return a.Handle(ctx, msg)
}

// Handle dispatches msg and sends the reply back to where it came from
func (a *LarkAdapter) Handle(ctx context.Context, msg dispatcher.Message) error {
	reply, err := a.handler.Dispatch(ctx, msg)
	if err != nil {
		a.logger.Error("Failed to dispatch message",
			zap.String("user_id", msg.UserID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return fmt.Errorf("failed to dispatch message: %w", err)
	}
	if reply == nil || reply.Text == "" {
		return nil
	}

	if reply.ChatID != "" {
		err = a.sender.SendToChat(ctx, reply.ChatID, reply.Text)
	} else {
		err = a.sender.SendText(ctx, reply.UserID, reply.Text)
	}
	if err != nil {
		a.logger.Error("Failed to send reply",
			zap.String("user_id", reply.UserID),
			zap.String("kind", reply.Kind.String()),
			zap.Error(err))
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

type textContent struct {
	Text string `json:"text"`
}

type imageContent struct {
	ImageKey string `json:"image_key"`
}

// ParseMessage converts a Lark receive event into a dispatcher message.
// Only text and image messages from users are accepted.
func ParseMessage(evt *larkim.P2MessageReceiveV1, now func() time.Time) (dispatcher.Message, bool) {
	if evt == nil || evt.Event == nil || evt.Event.Message == nil || evt.Event.Sender == nil {
		return dispatcher.Message{}, false
	}
	sender, m := evt.Event.Sender, evt.Event.Message
	if sender.SenderId == nil || str(sender.SenderId.OpenId) == "" {
		return dispatcher.Message{}, false
	}
	if t := str(sender.SenderType); t != "" && t != "user" {
		return dispatcher.Message{}, false
	}

	msg := dispatcher.Message{
		UserID:     str(sender.SenderId.OpenId),
		ChatID:     str(m.ChatId),
		MessageID:  str(m.MessageId),
		ReceivedAt: createTime(str(m.CreateTime), now),
	}

	content := []byte(str(m.Content))
	switch str(m.MessageType) {
	case messageTypeText:
		var c textContent
		if err := json.Unmarshal(content, &c); err != nil {
			return dispatcher.Message{}, false
		}
		msg.Text = utils.CleanMessageText(c.Text)
	case messageTypeImage:
		var c imageContent
		if err := json.Unmarshal(content, &c); err != nil || c.ImageKey == "" {
			return dispatcher.Message{}, false
		}
		msg.PhotoID = c.ImageKey
	default:
		return dispatcher.Message{}, false
	}
	return msg, true
}

// createTime parses the millisecond timestamp Lark puts on messages
func createTime(ms string, now func() time.Time) time.Time {
	if v, err := strconv.ParseInt(ms, 10, 64); err == nil && v > 0 {
		return time.UnixMilli(v)
	}
	return now()
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
