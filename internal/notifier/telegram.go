package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-resty/resty/v2"

	"carwatch/internal/config"
)

// Ограничение Bot API на длину одного сообщения
const telegramMaxLen = 4096

type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegram(cfg config.TelegramConfig, timeout time.Duration) *Telegram {
	client := resty.New()
	client.SetBaseURL(cfg.APIBase)
	client.SetTimeout(timeout)

	return &Telegram{
		client: client,
		token:  cfg.Token,
		chatID: cfg.ChatID,
	}
}

// Notify отправляет текст; длинные сообщения режутся по строкам на несколько частей
func (t *Telegram) Notify(ctx context.Context, text string) error {
	for i, chunk := range splitMessage(text, telegramMaxLen) {
		var result telegramResponse
		res, err := t.client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"chat_id": t.chatID,
				"text":    chunk,
			}).
			SetResult(&result).
			SetError(&result).
			Post("/bot" + t.token + "/sendMessage")
		if err != nil {
			// В URL есть токен, в лог он попасть не должен
			return fmt.Errorf("telegram request failed (part %d): %w", i+1, errors.New(t.redact(err.Error())))
		}
		if res.IsError() || !result.OK {
			return fmt.Errorf("telegram API error (part %d, status %d): %s", i+1, res.StatusCode(), result.Description)
		}
	}
	return nil
}

func (t *Telegram) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "***")
}

// splitMessage делит текст на части не длиннее limit единиц UTF-16 (так считает
// Telegram), по возможности по границам строк
func splitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if size+n > limit {
			flush()
		}
		if n <= limit {
			current.WriteString(line)
			size += n
			continue
		}
		// Строка длиннее лимита режется по символам
		for _, r := range line {
			l := utf16.RuneLen(r)
			if size+l > limit {
				flush()
			}
			current.WriteRune(r)
			size += l
		}
	}
	flush()

	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
