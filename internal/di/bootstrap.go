package di

import (
	"fmt"
	"time"

	"github.com/kapu/gemini-telegram-bot-go/internal/bot"
	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/gemini"
	"github.com/kapu/gemini-telegram-bot-go/internal/handler"
	"github.com/kapu/gemini-telegram-bot-go/internal/logging"
	"github.com/kapu/gemini-telegram-bot-go/internal/prompt"
	"github.com/kapu/gemini-telegram-bot-go/internal/ratelimit"
	"github.com/kapu/gemini-telegram-bot-go/internal/server"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/telegram"
	"github.com/kapu/gemini-telegram-bot-go/internal/throttle"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

// InitializeApp 은 애플리케이션 의존성을 초기화하고 App 인스턴스를 반환한다.
func InitializeApp() (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	prompts, err := prompt.NewBundle(cfg.Prompt.Dir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	geminiClient, err := gemini.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	telegramClient, err := telegram.NewClient(cfg.Telegram, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}

	sessions := session.NewStore(prompts.SeedTurns, logger)
	limiter := ratelimit.NewLimiter(cfg.Quota.DailyMessageLimit)
	gate := throttle.NewGate(cfg.Throttle.MinInterval())
	ledger := usage.NewLedger(time.Now())

	dispatcher := bot.NewDispatcher(
		telegramClient, geminiClient, sessions, limiter, gate, ledger, prompts, logger,
	)
	poller := telegram.NewPoller(telegramClient, logger)

	reporter := usage.NewReporter(
		ledger,
		telegramClient,
		cfg.Telegram.OperatorChatID,
		cfg.Usage.ReportCheckInterval(),
		logger,
	)

	router := handler.NewRouter(cfg, logger, sessions, ledger)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, telegramClient, poller, dispatcher, sessions, ledger, reporter), nil
}
