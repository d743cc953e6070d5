package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/daterange"
	"fintrack/internal/storage"
)

// NotConfiguredReply is returned by the assistant when no model is set up.
const NotConfiguredReply = "AI chat is not configured. Please set OPENAI_API_KEY in the server environment."

const systemPrompt = `You are a helpful financial assistant for a personal expense tracker.
Your goal is to help users understand their financial data, including expenses, income and balance trends.

RULES:
1. Only answer questions about the user's finances, expenses, income, budgets or general financial advice.
2. For anything else, politely refuse with: "I can only assist you with financial queries related to your expense tracker data."
3. The user's current financial context (KPIs for the last month and recent transactions) is provided as JSON. Use it to answer specific questions such as "How much did I spend?" or "What is my balance?".
4. Be concise, professional and encouraging.
5. Show amounts with two decimals.`

const contextAck = "Understood. I am ready to assist with financial queries based on this data."

// ChatModel completes a conversation.
type ChatModel interface {
	Complete(ctx context.Context, messages []core.ChatMessage) (string, error)
}

type ChatService struct {
	model        ChatModel
	dashboard    *DashboardService
	transactions *TransactionService
	logger       *slog.Logger
}

func NewChatService(model ChatModel, dashboard *DashboardService, transactions *TransactionService, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{model: model, dashboard: dashboard, transactions: transactions, logger: logger}
}

type chatContext struct {
	KPIs               KPISet          `json:"kpis"`
	RecentTransactions []chatTxContext `json:"recent_transactions"`
}

type chatTxContext struct {
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Type        core.Kind  `json:"type"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
}

// Reply answers message using the owner's last month KPIs and ten most
// recent transactions as context.
func (s *ChatService) Reply(ctx context.Context, ownerID, message string, history []core.ChatMessage) (string, error) {
	if ownerID == "" {
		return "", core.ErrMissingOwner
	}
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", core.ErrInvalidArgument)
	}
	if s.model == nil {
		s.logger.WarnContext(ctx, "Chat model not configured", "user_id", ownerID)
		return NotConfiguredReply, nil
	}

	financial, err := s.context(ctx, ownerID)
	if err != nil {
		return "", err
	}

	messages := make([]core.ChatMessage, 0, len(history)+4)
	messages = append(messages,
		core.ChatMessage{Role: core.RoleSystem, Content: systemPrompt + "\n\nUSER CONTEXT:\n" + financial},
		core.ChatMessage{Role: core.RoleAssistant, Content: contextAck},
	)
	for _, h := range history {
		role := core.RoleAssistant
		if h.Role == core.RoleUser {
			role = core.RoleUser
		}
		messages = append(messages, core.ChatMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: message})

	reply, err := s.model.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

func (s *ChatService) context(ctx context.Context, ownerID string) (string, error) {
	kpis, err := s.dashboard.GetKPIs(ctx, ownerID, daterange.FilterMonth, nil, nil)
	if err != nil {
		return "", fmt.Errorf("chat context: %w", err)
	}
	page, err := s.transactions.List(ctx, storage.ListQuery{
		OwnerID:    ownerID,
		Limit:      recentTransactionsLimit,
		SortBy:     storage.SortByDate,
		Descending: true,
	})
	if err != nil {
		return "", fmt.Errorf("chat context: %w", err)
	}

	cc := chatContext{KPIs: kpis, RecentTransactions: make([]chatTxContext, 0, len(page.Items))}
	for _, t := range page.Items {
		cc.RecentTransactions = append(cc.RecentTransactions, chatTxContext{
			Date:        t.OccurredAt.Format(core.DateLayout),
			Amount:      t.Amount,
			Type:        t.Kind,
			Category:    t.Category,
			Description: t.Description,
		})
	}
	b, err := json.Marshal(cc)
	if err != nil {
		return "", fmt.Errorf("chat context: %w", err)
	}
	return string(b), nil
}
