package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/storagetest"
)

type stubModel struct {
	messages []core.ChatMessage
	reply    string
	err      error
}

func (m *stubModel) Complete(_ context.Context, messages []core.ChatMessage) (string, error) {
	m.messages = messages
	return m.reply, m.err
}

func newChat(t *testing.T, model ChatModel) *ChatService {
	t.Helper()
	store := memory.New(storagetest.Fixture()...)
	dashboard := NewDashboardService(store, fixedResolver(), nil)
	txs := NewTransactionService(store, nil, nil, nil)
	return NewChatService(model, dashboard, txs, nil)
}

func TestChatService_Reply(t *testing.T) {
	model := &stubModel{reply: "You spent 450.50 last month."}
	svc := newChat(t, model)

	reply, err := svc.Reply(context.Background(), "u1", "How much did I spend?", []core.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "model", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You spent 450.50 last month.", reply)

	require.Len(t, model.messages, 5)
	system := model.messages[0]
	assert.Equal(t, core.RoleSystem, system.Role)
	assert.Contains(t, system.Content, `"total_debits":{"current":450.5`)
	assert.Contains(t, system.Content, `"description":"Dinner"`)
	assert.NotContains(t, system.Content, "Other owner")

	assert.Equal(t, core.RoleUser, model.messages[2].Role)
	// unknown roles are treated as assistant turns
	assert.Equal(t, core.RoleAssistant, model.messages[3].Role)
	assert.Equal(t, core.ChatMessage{Role: core.RoleUser, Content: "How much did I spend?"}, model.messages[4])
}

func TestChatService_NotConfigured(t *testing.T) {
	svc := newChat(t, nil)
	reply, err := svc.Reply(context.Background(), "u1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredReply, reply)
}

func TestChatService_Errors(t *testing.T) {
	svc := newChat(t, &stubModel{err: errors.New("quota exceeded")})
	ctx := context.Background()

	_, err := svc.Reply(ctx, "u1", "   ", nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.Reply(ctx, "", "hello", nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.Reply(ctx, "u1", "hello", nil)
	assert.ErrorContains(t, err, "quota exceeded")
}
