package chat

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records a message delivered through Fake.
type SentMessage struct {
	ChannelID string
	UserID    string
	Message   OutgoingMessage
}

// Fake is an in-memory Platform used by tests and local runs without a
// bot token.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	Channels map[string]ChannelSpec
	Deleted  []string
	Sent     []SentMessage
	DMs      []SentMessage
	History  map[string][]Message

	CreateErr error
	SendErr   error
	DMErr     error
	DeleteErr error
	FetchErr  error
}

// NewFake returns an empty fake platform.
func NewFake() *Fake {
	return &Fake{
		Channels: make(map[string]ChannelSpec),
		History:  make(map[string][]Message),
	}
}

func (f *Fake) CreateChannel(ctx context.Context, spec ChannelSpec) (*Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("chan-%d", f.nextID)
	f.Channels[id] = spec
	return &Channel{ID: id, GuildID: spec.GuildID, Name: spec.Name}, nil
}

func (f *Fake) SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.nextID++
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Message: msg})
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *Fake) SendDirectMessage(ctx context.Context, userID string, msg OutgoingMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DMErr != nil {
		return "", f.DMErr
	}
	f.nextID++
	f.DMs = append(f.DMs, SentMessage{UserID: userID, Message: msg})
	return fmt.Sprintf("dm-%d", f.nextID), nil
}

func (f *Fake) DeleteChannel(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.Channels, channelID)
	f.Deleted = append(f.Deleted, channelID)
	return nil
}

func (f *Fake) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	history := f.History[channelID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]Message(nil), history...), nil
}

// Snapshot returns copies of the recorded traffic.
func (f *Fake) Snapshot() (sent, dms []SentMessage, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Sent...),
		append([]SentMessage(nil), f.DMs...),
		append([]string(nil), f.Deleted...)
}

// ChannelCount returns the number of live channels.
func (f *Fake) ChannelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Channels)
}
