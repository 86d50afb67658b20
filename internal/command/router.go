package command

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"gitlab.com/yelinaung/budgetly-bot/internal/convstate"
	"gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

var implicitAddRe = regexp.MustCompile(`^\d+(\.\d+)?\s+.+`)

// maxSuggestionDistance bounds how far a mistyped command may be from a known one.
const maxSuggestionDistance = 2

var commands = map[string]Kind{
	"start":     KindStart,
	"link":      KindLink,
	"add":       KindAdd,
	"budget":    KindBudget,
	"today":     KindToday,
	"breakdown": KindBreakdown,
	"unlink":    KindDisconnect,
	"help":      KindHelp,
}

// suggestionOrder fixes tie-breaking between equally distant commands.
var suggestionOrder = []string{"start", "link", "add", "budget", "today", "breakdown", "unlink", "help"}

// Router parses chat text into Actions, consulting per-chat conversation state.
type Router struct {
	states  convstate.Store
	botName string
}

// NewRouter creates a Router. botName is the bot username, accepted as an
// "@botname" command suffix.
func NewRouter(states convstate.Store, botName string) *Router {
	return &Router{states: states, botName: strings.ToLower(strings.TrimPrefix(botName, "@"))}
}

// Route parses text received in chatID. While the chat awaits a linking
// code, non-command text is treated as the code.
func (r *Router) Route(ctx context.Context, chatID int64, text string) Action {
	text = strings.TrimSpace(text)
	if text == "" {
		return Action{Kind: KindUnrecognized}
	}

	if !strings.HasPrefix(text, "/") && r.awaitingCode(ctx, chatID) {
		return Action{Kind: KindLink, Arg: firstToken(text)}
	}

	return r.Parse(Normalize(text))
}

// Parse classifies already-normalized text without consulting conversation state.
func (r *Router) Parse(text string) Action {
	text = strings.TrimSpace(text)
	if text == "" {
		return Action{Kind: KindUnrecognized}
	}

	if strings.HasPrefix(text, "/") {
		return r.parseCommand(text)
	}

	if implicitAddRe.MatchString(text) {
		return Action{Kind: KindImplicitAdd, Arg: text}
	}
	return Action{Kind: KindUnrecognized}
}

func (r *Router) parseCommand(text string) Action {
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], strings.TrimSpace(text[i:])
	}

	name := strings.ToLower(strings.TrimPrefix(head, "/"))
	if base, mention, ok := strings.Cut(name, "@"); ok {
		if r.botName != "" && mention != r.botName {
			return Action{Kind: KindUnrecognized}
		}
		name = base
	}

	kind, ok := commands[name]
	if !ok {
		return Action{Kind: KindUnrecognized, Suggestion: suggest(name)}
	}

	switch kind {
	case KindLink:
		return Action{Kind: KindLink, Arg: firstToken(rest)}
	case KindAdd:
		return Action{Kind: KindAdd, Arg: rest}
	default:
		return Action{Kind: kind}
	}
}

func (r *Router) awaitingCode(ctx context.Context, chatID int64) bool {
	if r.states == nil {
		return false
	}
	state, err := r.states.Get(ctx, chatID)
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("chat_hash", logger.HashChatID(chatID)).
			Msg("Failed to read conversation state, treating as idle")
		return false
	}
	return state == convstate.StateAwaitingCode
}

// suggest returns the closest known command to name, or "" if none is close.
func suggest(name string) string {
	if name == "" {
		return ""
	}
	best, bestDist := "", maxSuggestionDistance+1
	for _, cmd := range suggestionOrder {
		if d := levenshtein.ComputeDistance(name, cmd); d < bestDist {
			best, bestDist = cmd, d
		}
	}
	if best == "" {
		return ""
	}
	return "/" + best
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
