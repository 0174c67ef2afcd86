// Package domain contains core concepts of the chat relay.
// This file defines the ChatMessage record exchanged between clients and the server.
// Messages are immutable values and carry no server-side identity.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the category of a ChatMessage. Numeric values are part of the wire format.
type Kind int32

const (
	KindUnknown Kind = iota
	KindLogin
	KindLoginSuccess
	KindLoginFail
	KindChat
	KindSystem
	KindUserList
	KindLogout
	KindForceLogout
)

// SystemSender is the sender of every server-originated message.
const SystemSender = "System"

// TimestampLayout is the wall-clock format of ChatMessage.Timestamp.
const TimestampLayout = time.TimeOnly

// UserListSeparator joins names in a UserList message.
const UserListSeparator = ","

var kindNames = map[Kind]string{
	KindLogin:        "LOGIN",
	KindLoginSuccess: "LOGIN_SUCCESS",
	KindLoginFail:    "LOGIN_FAIL",
	KindChat:         "CHAT",
	KindSystem:       "SYSTEM",
	KindUserList:     "USER_LIST",
	KindLogout:       "LOGOUT",
	KindForceLogout:  "FORCE_LOGOUT",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ChatMessage is the unit of exchange in both directions.
// Content is opaque text whose meaning depends on Kind:
//   - Login: proposed display name
//   - LoginSuccess, LoginFail, System, Logout, ForceLogout: human-readable text
//   - Chat: chat text, relayed verbatim
//   - UserList: comma-joined list of connected names
type ChatMessage struct {
	Kind      Kind
	Sender    string
	Content   string
	Timestamp string
}

// NewMessage stamps a message with the current wall-clock time.
func NewMessage(kind Kind, sender, content string) ChatMessage {
	return ChatMessage{
		Kind:      kind,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// NewSystemMessage creates a server-originated message.
func NewSystemMessage(kind Kind, content string) ChatMessage {
	return NewMessage(kind, SystemSender, content)
}

// NewUserList builds the total list of connected names.
func NewUserList(names []string) ChatMessage {
	return NewSystemMessage(KindUserList, strings.Join(names, UserListSeparator))
}

// ParseUserList splits UserList content back into names.
func ParseUserList(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(content, UserListSeparator)
}

// LoginName returns the name proposed by a Login message.
// Older clients put the name in Sender, so it is used when Content is empty.
func (m ChatMessage) LoginName() string {
	name := strings.TrimSpace(m.Content)
	if name == "" {
		name = strings.TrimSpace(m.Sender)
	}
	return name
}

func (m ChatMessage) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Timestamp, m.Sender, m.Content)
}
