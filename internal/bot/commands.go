package bot

import (
	"errors"
	"strings"
)

type commandKind int

const (
	commandHelp commandKind = iota
	commandSummarize
	commandPrompt
)

var (
	errMissingSource = errors.New("missing source text")
	errMissingPrompt = errors.New("missing prompt")
)

type command struct {
	kind   commandKind
	prompt string
	source string
}

// parseCommand reads a message. Plain text is summarized; /prompt takes the
// instruction on its first line and the source on the following lines.
func parseCommand(text string) (command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return command{}, errMissingSource
	}

	if !strings.HasPrefix(text, "/") {
		return command{kind: commandSummarize, source: text}, nil
	}

	name, rest := splitCommand(text)

	switch name {
	case "/summarize":
		if strings.TrimSpace(rest) == "" {
			return command{}, errMissingSource
		}

		return command{kind: commandSummarize, source: strings.TrimSpace(rest)}, nil
	case "/prompt":
		prompt, source, _ := strings.Cut(rest, "\n")
		prompt = strings.TrimSpace(prompt)
		source = strings.TrimSpace(source)

		if prompt == "" {
			return command{}, errMissingPrompt
		}
		if source == "" {
			return command{}, errMissingSource
		}

		return command{kind: commandPrompt, prompt: prompt, source: source}, nil
	default:
		return command{kind: commandHelp}, nil
	}
}

// splitCommand separates "/name@bot rest" into "/name" and "rest".
func splitCommand(text string) (string, string) {
	end := strings.IndexAny(text, " \t\n")

	name, rest := text, ""
	if end >= 0 {
		name, rest = text[:end], text[end:]
	}

	name, _, _ = strings.Cut(name, "@")

	return strings.ToLower(name), strings.TrimLeft(rest, " \t\r\n")
}
