package middleware

import (
	"strings"
	"time"

	"github.com/whatsdex/gateway/internal/ratelimit"
)

// commandPrefixes are the characters that introduce a command word.
const commandPrefixes = "/!"

// CommandSet resolves the leading word of a message to a declared
// command. Unprefixed messages and unknown names resolve to nil, which
// the pipeline treats as plain chat.
type CommandSet struct {
	byName map[string]*Command
}

// NewCommandSet indexes declared commands by lowercase name.
func NewCommandSet(commands []Command) *CommandSet {
	idx := make(map[string]*Command, len(commands))
	for i := range commands {
		c := commands[i]
		idx[strings.ToLower(c.Name)] = &c
	}
	return &CommandSet{byName: idx}
}

// Resolve returns the command a message addresses, or nil.
func (s *CommandSet) Resolve(content string) *Command {
	if content == "" || !strings.ContainsRune(commandPrefixes, rune(content[0])) {
		return nil
	}
	name := content[1:]
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	// Telegram suffixes group commands with the bot mention.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return s.byName[strings.ToLower(name)]
}

// CommandBudget converts a points-per-seconds pair into a cooldown
// budget; a non-positive pair means no per-command cooldown.
func CommandBudget(points, durationSeconds int) *ratelimit.Budget {
	if points <= 0 || durationSeconds <= 0 {
		return nil
	}
	return &ratelimit.Budget{
		Points:   points,
		Duration: time.Duration(durationSeconds) * time.Second,
	}
}
