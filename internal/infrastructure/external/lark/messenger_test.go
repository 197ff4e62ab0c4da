package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreator struct {
	reqs []*larkim.CreateMessageReq
	resp *larkim.CreateMessageResp
	err  error
}

func (f *fakeCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func okResp(id string) *larkim.CreateMessageResp {
	return &larkim.CreateMessageResp{
		CodeError: larkcore.CodeError{Code: 0},
		Data:      &larkim.CreateMessageRespData{MessageId: &id},
	}
}

func newTestMessenger(f *fakeCreator) *Messenger {
	return &Messenger{messages: f, logger: zap.NewNop()}
}

func TestMessenger_SendText(t *testing.T) {
	f := &fakeCreator{resp: okResp("om_1")}
	m := newTestMessenger(f)

	require.NoError(t, m.SendText(context.Background(), "ou_driver", "Shift opened"))
	require.Len(t, f.reqs, 1)

	req := f.reqs[0]
	assert.Equal(t, "ou_driver", *req.Body.ReceiveId)
	assert.Equal(t, larkim.MsgTypeText, *req.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*req.Body.Content), &content))
	assert.Equal(t, "Shift opened", content["text"])
}

func TestMessenger_SendToChat(t *testing.T) {
	f := &fakeCreator{resp: okResp("om_2")}
	m := newTestMessenger(f)

	require.NoError(t, m.SendToChat(context.Background(), "oc_chat", "Hi \"there\"\nline"))
	req := f.reqs[0]
	assert.Equal(t, "oc_chat", *req.Body.ReceiveId)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*req.Body.Content), &content))
	assert.Equal(t, "Hi \"there\"\nline", content["text"])
}

func TestMessenger_Errors(t *testing.T) {
	tests := []struct {
		name    string
		creator *fakeCreator
		to      string
		text    string
		wantErr string
	}{
		{"empty receiver", &fakeCreator{}, "", "x", "receive id cannot be empty"},
		{"empty text", &fakeCreator{}, "ou_1", "", "content cannot be empty"},
		{"transport", &fakeCreator{err: errors.New("dial tcp")}, "ou_1", "x", "failed to send message"},
		{"api failure", &fakeCreator{resp: &larkim.CreateMessageResp{
			CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"},
		}}, "ou_1", "x", "code=230002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMessenger(tt.creator)
			err := m.SendText(context.Background(), tt.to, tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
