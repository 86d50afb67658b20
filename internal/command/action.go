package command

// Kind identifies the command an Action carries.
type Kind int

// Action kinds.
const (
	KindUnrecognized Kind = iota
	KindStart
	KindLink
	KindAdd
	KindImplicitAdd
	KindBudget
	KindToday
	KindBreakdown
	KindDisconnect
	KindHelp
)

var kindNames = [...]string{
	KindUnrecognized: "unrecognized",
	KindStart:        "start",
	KindLink:         "link",
	KindAdd:          "add",
	KindImplicitAdd:  "implicit_add",
	KindBudget:       "budget",
	KindToday:        "today",
	KindBreakdown:    "breakdown",
	KindDisconnect:   "disconnect",
	KindHelp:         "help",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Action is the parsed form of one chat message.
//
// Arg holds the link code for KindLink, and the "<amount> <description>"
// payload for KindAdd and KindImplicitAdd. Suggestion is set on
// KindUnrecognized when the text looked like a mistyped command.
type Action struct {
	Kind       Kind
	Arg        string
	Suggestion string
}
