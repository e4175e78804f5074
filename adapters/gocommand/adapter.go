package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Validated wraps cmd so every message is checked against the message
// contract before Execute runs. A nil cmd yields nil.
func Validated[T command.Message](cmd command.Commander[T]) command.Commander[T] {
	if cmd == nil {
		return nil
	}
	return command.CommandFunc[T](func(ctx context.Context, msg T) error {
		if err := ValidateMessageContract(msg); err != nil {
			return err
		}
		return cmd.Execute(ctx, msg)
	})
}

// Func adapts a plain function into a commander.
func Func[T any](fn func(context.Context, T) error) command.Commander[T] {
	if fn == nil {
		return nil
	}
	return command.CommandFunc[T](fn)
}
