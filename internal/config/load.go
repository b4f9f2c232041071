package config

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// ErrMissingBotToken 는 봇 토큰이 없을 때 반환된다.
var ErrMissingBotToken = errors.New("missing bot token")

// ErrMissingAPIKey 는 Gemini API 키가 없을 때 반환된다.
var ErrMissingAPIKey = errors.New("missing gemini api key")

// Load 는 환경 변수 기반 설정을 로드한다.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig 는 설정을 로드하고 검증한다.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 는 필수 자격 증명 존재 여부를 검사한다.
// 둘 중 하나라도 없으면 기동 자체를 실패시킨다.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Telegram.BotToken == "" {
		return ErrMissingBotToken
	}
	if len(c.Gemini.APIKeys) == 0 {
		return ErrMissingAPIKey
	}
	return nil
}

// LogEnvStatus 는 환경 설정 상태를 로그로 남긴다.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", fileExists(".env"),
		"bot_token", maskSecret(cfg.Telegram.BotToken),
		"gemini_keys", len(cfg.Gemini.APIKeys),
		"primary_key", maskSecret(cfg.Gemini.PrimaryKey()),
		"model", cfg.Gemini.Model,
		"daily_limit", cfg.Quota.DailyMessageLimit,
		"min_interval_ms", cfg.Throttle.MinIntervalMS,
		"operator_set", cfg.Telegram.HasOperator(),
		"http_port", cfg.HTTP.Port,
	)
}

func buildConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BotToken:           getEnvString("BOT_TOKEN", ""),
			APIBaseURL:         getEnvString("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			PollTimeoutSeconds: max(1, getEnvInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 50)),
			OperatorChatID:     getEnvInt64("OPERATOR_CHAT_ID", 0),
		},
		Gemini: GeminiConfig{
			APIKeys:         parseAPIKeys(),
			Model:           getEnvString("GEMINI_MODEL", "gemini-2.0-flash-lite"),
			Temperature:     getEnvFloat("GEMINI_TEMPERATURE", 0.7),
			MaxOutputTokens: getEnvInt("GEMINI_MAX_TOKENS", 8192),
			TimeoutSeconds:  getEnvInt("GEMINI_TIMEOUT", 60),
		},
		Quota: QuotaConfig{
			DailyMessageLimit: max(1, getEnvInt("DAILY_MESSAGE_LIMIT", 30)),
		},
		Throttle: ThrottleConfig{
			MinIntervalMS: getEnvNonNegativeInt("UPSTREAM_MIN_INTERVAL_MS", 500),
		},
		Usage: UsageConfig{
			ReportCheckMinutes: max(1, getEnvInt("USAGE_REPORT_CHECK_MINUTES", 60)),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         getEnvString("HTTP_HOST", "0.0.0.0"),
			Port:         resolvePort(),
			HTTP2Enabled: getEnvBool("HTTP2_ENABLED", true),
		},
		Prompt: PromptConfig{
			Dir: getEnvString("PROMPTS_DIR", ""),
		},
	}
}

// resolvePort 는 HTTP_PORT 우선, 없으면 호스팅이 주입하는 PORT 를 사용한다.
func resolvePort() int {
	if port := getEnvInt("HTTP_PORT", 0); port > 0 {
		return port
	}
	return getEnvInt("PORT", 8080)
}
