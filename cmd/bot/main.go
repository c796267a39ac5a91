package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	slackapi "github.com/slack-go/slack"

	"assistant-bot/internal/adapter/anthropic"
	"assistant-bot/internal/adapter/memory"
	"assistant-bot/internal/adapter/openai"
	"assistant-bot/internal/adapter/redis"
	"assistant-bot/internal/adapter/slack"
	"assistant-bot/internal/adapter/telegram"
	"assistant-bot/internal/config"
	"assistant-bot/internal/domain"
	"assistant-bot/internal/logger"
	"assistant-bot/internal/usecase/chat"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	contexts, closeStore, err := newContextStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to init thread context store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	bot, err := newBot(cfg, newCompletionClient(cfg), contexts)
	if err != nil {
		slog.Error("failed to init bot", "platform", cfg.Platform, "error", err)
		os.Exit(1)
	}

	slog.Info("assistant starting", "platform", cfg.Platform, "provider", cfg.LLMProvider, "model", cfg.Model)
	if err := bot.Run(ctx); err != nil {
		if ctx.Err() != nil {
			slog.Info("shutdown", "reason", err)
			return
		}
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
}

func newCompletionClient(cfg config.Config) chat.CompletionClient {
	if cfg.LLMProvider == config.ProviderAnthropic {
		return anthropic.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
	}
	return openai.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
}

func newContextStore(ctx context.Context, cfg config.Config) (domain.ThreadContextStore, func(), error) {
	if cfg.RedisURL == "" {
		return memory.NewContextStore(), func() {}, nil
	}
	client, err := redis.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	return redis.NewContextStore(client, cfg.ThreadContextTTL), closeFn, nil
}

func newBot(cfg config.Config, client chat.CompletionClient, contexts domain.ThreadContextStore) (runner, error) {
	switch cfg.Platform {
	case config.PlatformSlack:
		api := slackapi.New(cfg.SlackBotToken, slackapi.OptionAppLevelToken(cfg.SlackAppToken))
		platform := slack.NewPlatform(api)
		chatSvc := chat.NewService(platform, client, contexts, cfg)
		return slack.NewBot(api, platform, chatSvc), nil

	case config.PlatformTelegram:
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("telegram bot api: %w", err)
		}
		store := memory.NewStore(cfg.ContextLimit)
		platform := telegram.NewPlatform(api, store, cfg.ContextTTL)
		chatSvc := chat.NewService(platform, client, contexts, cfg)
		return telegram.NewBot(api, platform, chatSvc, cfg), nil
	}
	return nil, fmt.Errorf("unknown platform %q", cfg.Platform)
}
