package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/chat"
)

func permissionBits(p chat.Permission) int64 {
	var bits int64
	if p.Has(chat.PermissionView) {
		bits |= discordgo.PermissionViewChannel
	}
	if p.Has(chat.PermissionSend) {
		bits |= discordgo.PermissionSendMessages
	}
	if p.Has(chat.PermissionReadHistory) {
		bits |= discordgo.PermissionReadMessageHistory
	}
	if p.Has(chat.PermissionManage) {
		bits |= discordgo.PermissionManageChannels
	}
	return bits
}

func toOverwrites(in []chat.PermissionOverwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(in))
	for _, ow := range in {
		kind := discordgo.PermissionOverwriteTypeRole
		if ow.Kind == chat.OverwriteMember {
			kind = discordgo.PermissionOverwriteTypeMember
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.TargetID,
			Type:  kind,
			Allow: permissionBits(ow.Allow),
			Deny:  permissionBits(ow.Deny),
		})
	}
	return out
}

func buttonStyle(s chat.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case chat.ButtonSecondary:
		return discordgo.SecondaryButton
	case chat.ButtonSuccess:
		return discordgo.SuccessButton
	case chat.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

// Discord allows five buttons per action row.
const buttonsPerRow = 5

func toComponents(buttons []chat.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				CustomID: b.CustomID,
				Disabled: b.Disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func toMessageSend(msg chat.OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Buttons),
	}
	if msg.Embed != nil {
		embed := &discordgo.MessageEmbed{
			Title:       msg.Embed.Title,
			Description: msg.Embed.Description,
			Color:       msg.Embed.Color,
		}
		if msg.Embed.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Embed.Footer}
		}
		if !msg.Embed.Timestamp.IsZero() {
			embed.Timestamp = msg.Embed.Timestamp.UTC().Format(time.RFC3339)
		}
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return send
}

func fromMessage(m *discordgo.Message) chat.Message {
	out := chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = m.Author.Username
		if m.Author.GlobalName != "" {
			out.AuthorName = m.Author.GlobalName
		}
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, chat.Attachment{Name: a.Filename, URL: a.URL})
	}
	return out
}

// fromMember resolves the person behind an interaction. Guild presses carry
// a member; presses in DMs only carry a user.
func fromMember(member *discordgo.Member, user *discordgo.User) chat.Member {
	if member != nil && member.User != nil {
		out := chat.Member{
			UserID:      member.User.ID,
			Username:    member.User.Username,
			DisplayName: member.User.GlobalName,
		}
		if member.Nick != "" {
			out.DisplayName = member.Nick
		}
		return out
	}
	if user != nil {
		return chat.Member{UserID: user.ID, Username: user.Username, DisplayName: user.GlobalName}
	}
	return chat.Member{}
}
