// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package glossary

import "strings"

// CommandPrefix marks a message as a command. Messages without it are
// treated as bare search keys.
const CommandPrefix = "!"

// Command identifies one of the five glossary commands.
type Command int

const (
	// CommandNone means the message is not a command (search fallback).
	CommandNone Command = iota
	// CommandAdd is "!add <key>: <value>".
	CommandAdd
	// CommandMultiAdd is "!multi-add" with one "<key>: <value>;" per line.
	CommandMultiAdd
	// CommandRemove is "!remove <key>" or "!remove <key>: <value>".
	CommandRemove
	// CommandDetails is "!details <key>: <value>".
	CommandDetails
	// CommandHelp is "!help".
	CommandHelp
)

// commandWords maps command words to their Command, in match priority
// order. First match wins.
var commandWords = []struct {
	word    string
	command Command
}{
	{"add", CommandAdd},
	{"multi-add", CommandMultiAdd},
	{"remove", CommandRemove},
	{"details", CommandDetails},
	{"help", CommandHelp},
}

// KeyValuePair is the parse result of a "<key>: <value>" argument.
// Both sides are trimmed and non-empty.
type KeyValuePair struct {
	Key   string
	Value string
}

// Classify determines whether message text is a command. Returns the
// command and its raw argument string (the text after the
// prefix+word token, trimmed).
//
// A message is a command only if, after trimming, it starts with the
// prefix and the text after the prefix starts with a known command
// word followed by end-of-string or whitespace. The boundary check
// keeps "!addendum" from matching "add". Anything else returns
// CommandNone with the full trimmed text as payload — the caller
// treats it as a search key.
func Classify(text string) (Command, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, CommandPrefix) {
		return CommandNone, trimmed
	}

	afterPrefix := trimmed[len(CommandPrefix):]
	for _, candidate := range commandWords {
		rest, ok := cutCommandWord(afterPrefix, candidate.word)
		if !ok {
			continue
		}
		return candidate.command, strings.TrimSpace(rest)
	}
	return CommandNone, trimmed
}

// cutCommandWord strips word from the front of s. Matches only if the
// character immediately after the word is end-of-string or
// whitespace.
func cutCommandWord(s, word string) (rest string, ok bool) {
	if !strings.HasPrefix(s, word) {
		return "", false
	}
	rest = s[len(word):]
	if rest == "" {
		return "", true
	}
	first := rune(rest[0])
	if first != ' ' && first != '\t' && first != '\n' && first != '\r' {
		return "", false
	}
	return rest, true
}

// ParseKeyValue splits an argument string at its first colon into a
// trimmed key and value. Fails if there is no colon, if the colon is
// the first character (empty key), or if either side trims to empty.
func ParseKeyValue(s string) (KeyValuePair, bool) {
	colon := strings.Index(s, ":")
	if colon <= 0 {
		return KeyValuePair{}, false
	}
	key := strings.TrimSpace(s[:colon])
	value := strings.TrimSpace(s[colon+1:])
	if key == "" || value == "" {
		return KeyValuePair{}, false
	}
	return KeyValuePair{Key: key, Value: value}, true
}

// ParseMultiAdd extracts key-value pairs from a multi-add payload:
// one pair per line, blank lines dropped, one optional trailing
// semicolon stripped per line. Malformed lines are silently skipped —
// only well-formed lines become pairs.
func ParseMultiAdd(payload string) []KeyValuePair {
	var pairs []KeyValuePair
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimSuffix(line, ";"))
		pair, ok := ParseKeyValue(line)
		if !ok {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
