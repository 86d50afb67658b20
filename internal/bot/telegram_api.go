package bot

import (
	tgbot "github.com/go-telegram/bot"
	"gitlab.com/yelinaung/budgetly-bot/internal/bot/mocks"
	"gitlab.com/yelinaung/budgetly-bot/internal/voice"
)

// TelegramAPI is an alias to the interface defined in mocks package.
// The interface is defined in mocks to avoid import cycles.
type TelegramAPI = mocks.TelegramAPI

// Compile-time checks that the real bot satisfies the interfaces.
var (
	_ TelegramAPI      = (*tgbot.Bot)(nil)
	_ voice.FileGetter = (*tgbot.Bot)(nil)
	_ VoiceProcessor   = (*voice.Pipeline)(nil)
)
