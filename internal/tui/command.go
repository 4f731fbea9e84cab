package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandNames lists the ":" commands in the order the prompt offers them.
var CommandNames = []string{"new", "open", "reload", "logout", "help", "quit"}

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ID parses the argument as a positive numeric id.
func (c Command) ID() (int64, error) {
	if c.Args == "" {
		return 0, fmt.Errorf(":%s needs an id", c.Name)
	}
	id, err := strconv.ParseInt(c.Args, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf(":%s: %q is not a valid id", c.Name, c.Args)
	}
	return id, nil
}
