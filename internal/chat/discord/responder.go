package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

type interactionClient interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Responder answers one interaction with ephemeral messages.
type Responder struct {
	client      interactionClient
	interaction *discordgo.Interaction
}

// NewResponder binds a responder to the interaction.
func NewResponder(client interactionClient, interaction *discordgo.Interaction) *Responder {
	return &Responder{client: client, interaction: interaction}
}

func (r *Responder) Reply(ctx context.Context, content string) error {
	return r.client.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
}

func (r *Responder) Defer(ctx context.Context) error {
	return r.client.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

func (r *Responder) EditReply(ctx context.Context, content string) error {
	_, err := r.client.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx))
	return err
}

func (r *Responder) DisableComponents(ctx context.Context) error {
	msg := r.interaction.Message
	if msg == nil {
		return nil
	}
	_, err := r.client.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         msg.ID,
		Channel:    msg.ChannelID,
		Components: &[]discordgo.MessageComponent{},
	}, discordgo.WithContext(ctx))
	return err
}
