package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Command is a chat command answered by platforms that accept input.
type Command struct {
	// Name is the command without its leading slash.
	Name        string
	Description string
	// Usage documents the arguments, e.g. "<code>".
	Usage string
	// Run returns the reply for the words following the command.
	Run func(ctx context.Context, args []string) (string, error)
}

// Listener is a platform that receives chat commands. Listen serves cmds
// until ctx is done.
type Listener interface {
	Platform
	Listen(ctx context.Context, cmds []Command) error
}

// HelpText lists cmds in name order.
func HelpText(cmds []Command) string {
	sorted := make([]Command, len(cmds))
	copy(sorted, cmds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	sb.WriteString("Available commands:")
	for _, c := range sorted {
		sb.WriteString("\n/" + c.Name)
		if c.Usage != "" {
			sb.WriteString(" " + c.Usage)
		}
		if c.Description != "" {
			sb.WriteString(" - " + c.Description)
		}
	}
	return sb.String()
}

// ParseCommand splits "/name@bot arg1 arg2" into name and arguments.
// ok is false when text is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// withHelp appends a help command describing cmds unless one exists.
func withHelp(cmds []Command) []Command {
	for _, c := range cmds {
		if c.Name == "help" {
			return cmds
		}
	}
	help := Command{Name: "help", Description: "Show this list"}
	all := append(append([]Command{}, cmds...), help)
	text := HelpText(all)
	all[len(all)-1].Run = func(context.Context, []string) (string, error) { return text, nil }
	return all
}

// runCommand executes cmd and turns a failure into a user-facing reply.
func runCommand(ctx context.Context, cmd Command, args []string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command /%s panicked: %v", cmd.Name, r)
		}
		if err != nil {
			reply = fmt.Sprintf("/%s failed: %v", cmd.Name, err)
		}
	}()
	return cmd.Run(ctx, args)
}
