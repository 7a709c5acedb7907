package helper

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Command is one line typed at the interactive prompt.
type Command struct {
	Name string
	Args []string
}

var commandArity = map[string]int{
	"capture": 0,
	"pick":    1,
	"switch":  0,
	"dismiss": 0,
	"retake":  0,
	"proceed": 0,
	"grant":   0,
	"hide":    0,
	"show":    0,
	"status":  0,
	"help":    0,
	"quit":    0,
}

var errEmptyCommand = errors.New("empty command")

// ParseCommand splits a prompt line into a command and its arguments.
// Arguments may be double-quoted to keep spaces, e.g. pick "my photos/a.jpg".
func ParseCommand(line string) (Command, error) {
	parts, err := splitArgs(strings.TrimSpace(line))
	if err != nil {
		return Command{}, err
	}
	if len(parts) == 0 {
		return Command{}, errEmptyCommand
	}

	name := strings.ToLower(parts[0])
	if name == "exit" || name == "q" {
		name = "quit"
	}
	arity, ok := commandArity[name]
	if !ok {
		return Command{}, fmt.Errorf("unknown command: %s", parts[0])
	}
	args := parts[1:]
	if len(args) != arity {
		return Command{}, fmt.Errorf("%s takes %d argument(s), got %d", name, arity, len(args))
	}
	return Command{Name: name, Args: args}, nil
}

// CommandNames lists the accepted commands in a stable order.
func CommandNames() []string {
	names := lo.Without(lo.Keys(commandArity), "help")
	slices.Sort(names)
	return names
}

func splitArgs(s string) ([]string, error) {
	var (
		args     []string
		current  strings.Builder
		inQuotes bool
		quoted   bool
	)

	flush := func() {
		if current.Len() > 0 || quoted {
			args = append(args, current.String())
		}
		current.Reset()
		quoted = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			quoted = true
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, errors.New("unterminated quote")
	}
	flush()
	return args, nil
}
