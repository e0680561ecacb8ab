// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Message is a persisted chat line. For a fixed RoomID, Sequence is strictly
// increasing from 1 with no gaps.
type Message struct {
	ID         uuid.UUID
	RoomID     RoomID
	SenderID   UserID
	SenderName string
	Content    string
	Sequence   uint64
	CreatedAt  time.Time
}

// Draft is a message that has passed validation and authorization but has
// no sequence yet.
type Draft struct {
	ID         uuid.UUID
	RoomID     RoomID
	SenderID   UserID
	SenderName string
	Content    string
	CreatedAt  time.Time
}

// ValidContent rejects blank content and content longer than maxRunes.
func ValidContent(content string, maxRunes int) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	return utf8.RuneCountInString(content) <= maxRunes
}
