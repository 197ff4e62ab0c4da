package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func ptr(s string) *string { return &s }

func receiveEvent(msgType, content string) *larkim.P2MessageReceiveV1 {
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender: &larkim.EventSender{
				SenderId:   &larkim.UserId{OpenId: ptr("ou_driver")},
				SenderType: ptr("user"),
			},
			Message: &larkim.EventMessage{
				MessageId:   ptr("om_1"),
				ChatId:      ptr("oc_chat"),
				CreateTime:  ptr("1772438400000"),
				MessageType: ptr(msgType),
				Content:     ptr(content),
			},
		},
	}
}

type mockHandler struct {
	msgs  []dispatcher.Message
	reply *dispatcher.Reply
	err   error
}

func (m *mockHandler) Dispatch(ctx context.Context, msg dispatcher.Message) (*dispatcher.Reply, error) {
	m.msgs = append(m.msgs, msg)
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

type sent struct {
	to, text string
	chat     bool
}

type mockSender struct {
	sent []sent
	err  error
}

func (m *mockSender) SendText(ctx context.Context, userID, text string) error {
	m.sent = append(m.sent, sent{to: userID, text: text})
	return m.err
}

func (m *mockSender) SendToChat(ctx context.Context, chatID, text string) error {
	m.sent = append(m.sent, sent{to: chatID, text: text, chat: true})
	return m.err
}

func newTestAdapter(h *mockHandler, s *mockSender) *LarkAdapter {
	a := NewLarkAdapter(LarkAdapterConfig{AppID: "cli_test"}, h, s, zap.NewNop())
	a.now = clock
	return a
}

func TestParseMessage_Text(t *testing.T) {
	msg, ok := ParseMessage(receiveEvent("text", `{"text":"@_user_1 🏁 Close shift"}`), clock)
	require.True(t, ok)

	assert.Equal(t, "ou_driver", msg.UserID)
	assert.Equal(t, "oc_chat", msg.ChatID)
	assert.Equal(t, "om_1", msg.MessageID)
	assert.Equal(t, "🏁 Close shift", msg.Text)
	assert.Empty(t, msg.PhotoID)
	assert.Equal(t, time.UnixMilli(1772438400000), msg.ReceivedAt)
}

func TestParseMessage_Image(t *testing.T) {
	msg, ok := ParseMessage(receiveEvent("image", `{"image_key":"img_v2_abc"}`), clock)
	require.True(t, ok)
	assert.Equal(t, "img_v2_abc", msg.PhotoID)
	assert.Empty(t, msg.Text)
}

func TestParseMessage_Rejects(t *testing.T) {
	bot := receiveEvent("text", `{"text":"hi"}`)
	bot.Event.Sender.SenderType = ptr("app")

	noSender := receiveEvent("text", `{"text":"hi"}`)
	noSender.Event.Sender.SenderId = nil

	tests := []struct {
		name string
		evt  *larkim.P2MessageReceiveV1
	}{
		{"nil event", nil},
		{"empty body", &larkim.P2MessageReceiveV1{}},
		{"sticker", receiveEvent("sticker", `{"file_key":"x"}`)},
		{"broken json", receiveEvent("text", `{"text":`)},
		{"image without key", receiveEvent("image", `{}`)},
		{"bot sender", bot},
		{"no sender id", noSender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseMessage(tt.evt, clock)
			assert.False(t, ok)
		})
	}
}

func TestParseMessage_MissingCreateTime(t *testing.T) {
	evt := receiveEvent("text", `{"text":"1"}`)
	evt.Event.Message.CreateTime = nil

	msg, ok := ParseMessage(evt, clock)
	require.True(t, ok)
	assert.Equal(t, fixedNow, msg.ReceivedAt)
}

func TestLarkAdapter_RepliesToChat(t *testing.T) {
	h := &mockHandler{reply: &dispatcher.Reply{UserID: "ou_driver", ChatID: "oc_chat", Text: "Enter the odometer reading in km."}}
	s := &mockSender{}
	a := newTestAdapter(h, s)

	require.NoError(t, a.handleMessage(context.Background(), receiveEvent("text", `{"text":"/open_shift"}`)))

	require.Len(t, h.msgs, 1)
	assert.Equal(t, "/open_shift", h.msgs[0].Text)
	require.Len(t, s.sent, 1)
	assert.Equal(t, sent{to: "oc_chat", text: "Enter the odometer reading in km.", chat: true}, s.sent[0])
}

func TestLarkAdapter_FallsBackToUser(t *testing.T) {
	h := &mockHandler{reply: &dispatcher.Reply{UserID: "ou_driver", Text: "Cancelled."}}
	s := &mockSender{}
	a := newTestAdapter(h, s)

	require.NoError(t, a.Handle(context.Background(), dispatcher.Message{UserID: "ou_driver", Text: "/cancel"}))
	require.Len(t, s.sent, 1)
	assert.Equal(t, sent{to: "ou_driver", text: "Cancelled."}, s.sent[0])
}

func TestLarkAdapter_SkipsRedelivery(t *testing.T) {
	h := &mockHandler{reply: &dispatcher.Reply{ChatID: "oc_chat", Text: "ok"}}
	s := &mockSender{}
	a := newTestAdapter(h, s)
	evt := receiveEvent("text", `{"text":"12400"}`)

	require.NoError(t, a.handleMessage(context.Background(), evt))
	require.NoError(t, a.handleMessage(context.Background(), evt))

	assert.Len(t, h.msgs, 1)
	assert.Len(t, s.sent, 1)
}

func TestLarkAdapter_IgnoresUnsupported(t *testing.T) {
	h := &mockHandler{}
	a := newTestAdapter(h, &mockSender{})

	require.NoError(t, a.handleMessage(context.Background(), receiveEvent("file", `{"file_key":"f"}`)))
	assert.Empty(t, h.msgs)
}

func TestLarkAdapter_Errors(t *testing.T) {
	t.Run("dispatch", func(t *testing.T) {
		a := newTestAdapter(&mockHandler{err: dispatcher.ErrLanesClosed}, &mockSender{})
		err := a.Handle(context.Background(), dispatcher.Message{UserID: "u"})
		assert.ErrorIs(t, err, dispatcher.ErrLanesClosed)
	})

	t.Run("send", func(t *testing.T) {
		s := &mockSender{err: errors.New("API error")}
		a := newTestAdapter(&mockHandler{reply: &dispatcher.Reply{ChatID: "c", Text: "x"}}, s)
		err := a.Handle(context.Background(), dispatcher.Message{UserID: "u"})
		assert.ErrorContains(t, err, "failed to send reply")
	})

	t.Run("empty reply", func(t *testing.T) {
		s := &mockSender{}
		a := newTestAdapter(&mockHandler{reply: &dispatcher.Reply{}}, s)
		require.NoError(t, a.Handle(context.Background(), dispatcher.Message{UserID: "u"}))
		assert.Empty(t, s.sent)
	})
}

func TestLarkAdapter_StopBeforeStart(t *testing.T) {
	a := newTestAdapter(&mockHandler{}, &mockSender{})
	assert.False(t, a.IsRunning())
	assert.NoError(t, a.Stop())
}
