package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrDuplicate is returned when an insert collides with a primary or unique key.
	ErrDuplicate = errors.New("duplicate key")
	// ErrSlotTaken is returned when a match cannot be created because a member
	// (or the pair) is already in an active match.
	ErrSlotTaken = errors.New("agent already in an active match")
)

// isDuplicate recognises key collisions across drivers. TranslateError covers
// most of them; the string checks catch drivers that do not translate.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
