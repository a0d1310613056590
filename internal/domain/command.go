package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned for payloads that don't name one of the six commands
var ErrUnknownCommand = errors.New("unknown command")

// Command is one of the playback controls the bar can request.
// The set is closed.
type Command int

const (
	// CommandNext skips to the next track, no-op at the end of the list
	CommandNext Command = iota + 1
	// CommandPrevious goes back one track, or rewinds the first one
	CommandPrevious
	// CommandPause pauses playback, no-op when already paused
	CommandPause
	// CommandPlayPause toggles between playing and paused
	CommandPlayPause
	// CommandStop stops playback
	CommandStop
	// CommandPlay resumes playback, no-op when already playing
	CommandPlay
)

var commandNames = map[Command]string{
	CommandNext:      "Next",
	CommandPrevious:  "Previous",
	CommandPause:     "Pause",
	CommandPlayPause: "PlayPause",
	CommandStop:      "Stop",
	CommandPlay:      "Play",
}

// Commands lists every command in declaration order
func Commands() []Command {
	return []Command{CommandNext, CommandPrevious, CommandPause, CommandPlayPause, CommandStop, CommandPlay}
}

// String returns the wire name of the command
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps an exact, case-sensitive command name
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// DecodeCommand decodes a datagram payload. The payload is the JSON string
// of the command name, e.g. "Next" including the quotes.
func DecodeCommand(payload []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return 0, err
	}
	// null decodes without calling UnmarshalJSON
	if _, ok := commandNames[c]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, payload)
	}
	return c, nil
}

// MarshalJSON encodes the command as its JSON string name
func (c Command) MarshalJSON() ([]byte, error) {
	name, ok := commandNames[c]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, int(c))
	}
	return json.Marshal(name)
}

// UnmarshalJSON accepts only a JSON string holding a command name
func (c *Command) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	parsed, err := ParseCommand(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Execute issues the matching control call on the player
func (c Command) Execute(ctx context.Context, p Player) error {
	switch c {
	case CommandNext:
		return p.Next(ctx)
	case CommandPrevious:
		return p.Previous(ctx)
	case CommandPause:
		return p.Pause(ctx)
	case CommandPlayPause:
		return p.PlayPause(ctx)
	case CommandStop:
		return p.Stop(ctx)
	case CommandPlay:
		return p.Play(ctx)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(c))
	}
}
