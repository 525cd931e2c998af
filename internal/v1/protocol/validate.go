package protocol

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// User-facing messages for error events. The room code message is part of the
// client contract and must not drift.
const (
	MsgInvalidRoomCode = "Invalid room code. Must be exactly 6 alphanumeric characters."
	MsgInvalidUsername = "Username must be between 2 and 20 characters."
	MsgRoomFull        = "Room is full."
)

const (
	usernameMinLen = 2
	usernameMaxLen = 20
)

// ValidateRoomCode checks a room code against ^[A-Z0-9]{6}$.
func ValidateRoomCode(code string) error {
	if !roomCodePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", types.ErrInvalidRoomCode, code)
	}
	return nil
}

// ValidateUsername enforces the 2-20 character username length.
func ValidateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < usernameMinLen || n > usernameMaxLen {
		return fmt.Errorf("%w: %d characters", types.ErrInvalidUsername, n)
	}
	return nil
}
