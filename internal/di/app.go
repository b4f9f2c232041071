package di

import (
	"log/slog"
	"net/http"

	"github.com/kapu/gemini-telegram-bot-go/internal/bot"
	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/session"
	"github.com/kapu/gemini-telegram-bot-go/internal/telegram"
	"github.com/kapu/gemini-telegram-bot-go/internal/usage"
)

// App: 애플리케이션 구성 요소를 묶는다.
type App struct {
	Server     *http.Server
	Logger     *slog.Logger
	Config     *config.Config
	Telegram   *telegram.Client
	Poller     *telegram.Poller
	Dispatcher *bot.Dispatcher
	Sessions   *session.Store
	Ledger     *usage.Ledger
	Reporter   *usage.Reporter
}

// NewApp: App 인스턴스를 생성합니다.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	telegramClient *telegram.Client,
	poller *telegram.Poller,
	dispatcher *bot.Dispatcher,
	sessions *session.Store,
	ledger *usage.Ledger,
	reporter *usage.Reporter,
) *App {
	return &App{
		Server:     server,
		Logger:     logger,
		Config:     cfg,
		Telegram:   telegramClient,
		Poller:     poller,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Ledger:     ledger,
		Reporter:   reporter,
	}
}
