package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/dbpull/internal/config"
)

// maxDocumentSize is the largest file the Bot API accepts as a document.
const maxDocumentSize = 50 << 20

// TelegramStorage posts backups to a chat. It doubles as the notifier for
// finished pulls. Telegram offers no listing, so retention never applies.
type TelegramStorage struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	sendFile   bool
	notifyOnly bool
}

func NewTelegram(cfg *config.UploadTarget) (*TelegramStorage, error) {
	return newTelegram(cfg.BotToken, cfg.ChatID, cfg.SendFile, cfg.NotifyOnly)
}

// NewTelegramNotifier builds a message-only client from the notify section.
func NewTelegramNotifier(cfg config.TelegramNotifyConfig) (*TelegramStorage, error) {
	return newTelegram(cfg.BotToken, cfg.ChatID, false, true)
}

func newTelegram(token, chat string, sendFile, notifyOnly bool) (*TelegramStorage, error) {
	chatID, err := parseChatID(chat)
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramStorage{
		bot:        bot,
		chatID:     chatID,
		sendFile:   sendFile,
		notifyOnly: notifyOnly,
	}, nil
}

func parseChatID(chat string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chat, err)
	}
	return id, nil
}

func (t *TelegramStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if !t.attach(info.Size()) {
		msg := tgbotapi.NewMessage(t.chatID, backupMessage(remoteName, info.Size(), info.ModTime()))
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("failed to send telegram notification: %w", err)
		}
		return nil
	}

	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FilePath(localPath))
	doc.Caption = fmt.Sprintf("📦 Backup: %s (%s)", remoteName, humanize.Bytes(uint64(info.Size())))
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send telegram file: %w", err)
	}

	return nil
}

// attach reports whether the file itself should be sent rather than a
// summary message.
func (t *TelegramStorage) attach(size int64) bool {
	return t.sendFile && !t.notifyOnly && size <= maxDocumentSize
}

func backupMessage(name string, size int64, modified time.Time) string {
	return fmt.Sprintf(
		"✅ Backup Created\n\n"+
			"📁 File: %s\n"+
			"📊 Size: %s\n"+
			"🕐 Time: %s",
		name,
		humanize.Bytes(uint64(size)),
		modified.Format("2006-01-02 15:04:05"),
	)
}

func (t *TelegramStorage) List(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (t *TelegramStorage) Delete(ctx context.Context, remoteName string) error {
	return nil
}

func (t *TelegramStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	return []string{}, nil
}

func (t *TelegramStorage) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, message)); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
