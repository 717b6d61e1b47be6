package notify_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/notify"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTelegram(t *testing.T) *notify.Telegram {
	t.Helper()

	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})

	tg, err := notify.NewTelegram(notify.TelegramConfig{
		Token:   "123:ABC",
		ChatID:  "-5029",
		Timeout: time.Second,
	}, notify.WithHTTPClient(client))
	require.NoError(t, err)

	return tg
}

func TestTelegramSend(t *testing.T) {
	tg := newTelegram(t)

	gock.New("https://api.telegram.org").
		Get("/bot123:ABC/sendMessage").
		MatchParam("chat_id", "-5029").
		MatchParam("text", "Your plant is thirsty! Level: 2500").
		Reply(200).
		JSON(map[string]any{"ok": true})

	require.NoError(t, tg.Send(context.Background(), "Your plant is thirsty! Level: 2500"))
	assert.True(t, gock.IsDone())
}

func TestTelegramRejected(t *testing.T) {
	tg := newTelegram(t)

	gock.New("https://api.telegram.org").
		Get("/bot123:ABC/sendMessage").
		Reply(400).
		JSON(map[string]any{"ok": false, "description": "Bad Request: chat not found"})

	err := tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, notify.ErrRejected))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramTransportError(t *testing.T) {
	tg := newTelegram(t)

	gock.New("https://api.telegram.org").
		Get("/bot123:ABC/sendMessage").
		ReplyError(stderrors.New("connection reset"))

	err := tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, notify.ErrDeliveryFailed))
	assert.NotContains(t, err.Error(), "123:ABC", "token must not leak into errors")
}

func TestTelegramConfigValidation(t *testing.T) {
	_, err := notify.NewTelegram(notify.TelegramConfig{ChatID: "1"})
	assert.True(t, errors.HasCode(err, notify.ErrInvalidConfig))

	_, err = notify.NewTelegram(notify.TelegramConfig{Token: "t"})
	assert.True(t, errors.HasCode(err, notify.ErrInvalidConfig))
}

func TestNop(t *testing.T) {
	var n notify.Notifier = notify.Nop{}
	assert.NoError(t, n.Send(context.Background(), "ignored"))
}
