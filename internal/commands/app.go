package commands

import (
	"fintrack/internal/ai/openai"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/daterange"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// buildServices wires the service layer over store. publisher may be nil.
func buildServices(cfg *config.Config, store storage.Store, responses *cache.ResponseCache, publisher services.ChangePublisher, logger *log.Logger) apphttp.Services {
	var (
		parser services.StatementParser
		model  services.ChatModel
	)
	// New returns a nil *Client without a key; keep the interfaces nil too.
	if client := openai.New(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, logger.Slog(log.ComponentAI)); client != nil {
		parser, model = client, client
	}

	resolver := daterange.NewResolver()
	transactions := services.NewTransactionService(store, responses, publisher, logger.Slog(log.ComponentTransactions))
	dashboard := services.NewDashboardService(store, resolver, logger.Slog(log.ComponentDashboard))

	return apphttp.Services{
		Dashboard:    dashboard,
		Transactions: transactions,
		Budgets:      services.NewBudgetService(store, logger.Slog(log.ComponentBudgets)),
		Imports:      services.NewImportService(parser, transactions, logger.Slog(log.ComponentImport)),
		Chat:         services.NewChatService(model, dashboard, transactions, logger.Slog(log.ComponentChat)),
	}
}
