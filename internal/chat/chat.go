// Package chat defines the chat-platform collaborator the lifecycle engine
// drives: channel provisioning, messages, direct messages and history.
package chat

import (
	"context"
	"time"
)

// Permission is a bit set of channel capabilities.
type Permission uint8

const (
	PermissionView Permission = 1 << iota
	PermissionSend
	PermissionReadHistory
	PermissionManage
)

// Has reports whether all bits of q are set.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

// OverwriteKind says whether an overwrite targets a role or a member.
type OverwriteKind int

const (
	OverwriteRole OverwriteKind = iota
	OverwriteMember
)

// PermissionOverwrite grants and denies permissions to one role or member.
type PermissionOverwrite struct {
	TargetID string
	Kind     OverwriteKind
	Allow    Permission
	Deny     Permission
}

// ChannelSpec describes a channel to provision.
type ChannelSpec struct {
	GuildID    string
	Name       string
	ParentID   string
	Topic      string
	Overwrites []PermissionOverwrite
}

// Channel is a provisioned text channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// ButtonStyle mirrors the common button colors.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is an interactive control carrying an action identifier.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Embed is the rich card attached to a message.
type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Timestamp   time.Time
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name string
	URL  string
}

// Message is a message read back from channel history.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
	CreatedAt   time.Time
}

// Member is the guild member behind an interaction.
type Member struct {
	UserID      string
	Username    string
	DisplayName string
}

// Name returns the display name, falling back to the username.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}

// Platform is the chat-platform collaborator. Implementations must honor
// ctx cancellation on every call.
type Platform interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (*Channel, error)
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (string, error)
	SendDirectMessage(ctx context.Context, userID string, msg OutgoingMessage) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// FetchRecentMessages returns up to limit messages, oldest first.
	FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// ChannelMention renders a clickable channel reference.
func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// Colors used by the bot's embeds.
const (
	ColorBlurple = 0x5865F2
	ColorGold    = 0xFFD700
	ColorRed     = 0xED4245
)
