package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/notifier"
)

const (
	maxLabel   = 80
	maxOptions = 25
)

// session is the subset of discordgo.Session the transport uses.
type session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ notifier.Transport = (*Transport)(nil)

// Transport delivers prompts through a Discord bot.
type Transport struct {
	s         session
	channelID string
}

func NewTransport(s session, channelID string) *Transport {
	return &Transport{s: s, channelID: channelID}
}

// Mention formats a user reference.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

func (t *Transport) SendDirect(ctx context.Context, userID string, p notifier.Prompt) error {
	ch, err := t.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	return t.send(ctx, ch.ID, p)
}

func (t *Transport) SendChannel(ctx context.Context, p notifier.Prompt) error {
	return t.send(ctx, t.channelID, p)
}

func (t *Transport) send(ctx context.Context, channelID string, p notifier.Prompt) error {
	msg, err := t.s.ChannelMessageSendComplex(channelID, FormatPrompt(p), discordgo.WithContext(ctx))
	if err != nil {
		log.Error("Failed to send Discord message", "error", err, "channel", channelID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	log.Info("Successfully sent Discord message", "channel", channelID, "messageID", msg.ID)
	return nil
}

// FormatPrompt renders a prompt as a message with component rows.
func FormatPrompt(p notifier.Prompt) *discordgo.MessageSend {
	content := p.Body
	if p.Title != "" {
		content = "**" + p.Title + "**\n" + p.Body
	}
	msg := &discordgo.MessageSend{Content: content}

	if p.Select != nil && len(p.Select.Options) > 0 {
		options := make([]discordgo.SelectMenuOption, 0, len(p.Select.Options))
		for i, o := range p.Select.Options {
			if i == maxOptions {
				break
			}
			options = append(options, discordgo.SelectMenuOption{Label: truncate(o.Label), Value: o.ID})
		}
		msg.Components = append(msg.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    p.Select.ID,
					Placeholder: p.Select.Placeholder,
					Options:     options,
				},
			},
		})
	}

	if len(p.Choices) > 0 {
		buttons := make([]discordgo.MessageComponent, 0, len(p.Choices))
		for _, c := range p.Choices {
			style := discordgo.SuccessButton
			if c.Danger {
				style = discordgo.DangerButton
			}
			buttons = append(buttons, discordgo.Button{Label: truncate(c.Label), Style: style, CustomID: c.ID})
		}
		msg.Components = append(msg.Components, discordgo.ActionsRow{Components: buttons})
	}
	return msg
}

func truncate(s string) string {
	if len(s) > maxLabel {
		return s[:maxLabel]
	}
	return s
}
