package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Transport = &Transport{}

// Transport delivers prompts through Slack.
type Transport struct {
	api       slackClient
	channelID string
	dryRun    bool
}

// NewTransport creates a new Transport.
func NewTransport(token, channelID string, dryRun bool) *Transport {
	return &Transport{
		api:       slack.New(token),
		channelID: channelID,
		dryRun:    dryRun,
	}
}

// NewTransportWithAPI creates a new Transport with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewTransportWithAPI(api slackClient, channelID string, dryRun bool) *Transport {
	return &Transport{
		api:       api,
		channelID: channelID,
		dryRun:    dryRun,
	}
}

// Mention formats a user reference.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// SendDirect posts to the user ID, which Slack resolves to the bot's DM channel.
func (s *Transport) SendDirect(ctx context.Context, userID string, p notifier.Prompt) error {
	return s.sendMessage(ctx, userID, FormatPrompt(p))
}

func (s *Transport) SendChannel(ctx context.Context, p notifier.Prompt) error {
	return s.sendMessage(ctx, s.channelID, FormatPrompt(p))
}

func (s *Transport) sendMessage(ctx context.Context, channelID string, message slack.Message) error {
	if s.dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", channelID, "message", string(jsonMsg))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, timestamp, err := s.api.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return fmt.Errorf("failed to post message: %w", err)
	}
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return nil
}

// FormatPrompt renders a prompt as Block Kit blocks. Buttons carry the
// encoded action as action ID; select options carry their choice ID as value.
func FormatPrompt(p notifier.Prompt) slack.Message {
	blocks := make([]slack.Block, 0, 4)

	if p.Title != "" {
		blocks = append(blocks, slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", p.Title, true, false)))
	}
	if p.Body != "" {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", p.Body, false, false), nil, nil))
	}

	if p.Select != nil && len(p.Select.Options) > 0 {
		options := make([]*slack.OptionBlockObject, 0, len(p.Select.Options))
		for _, o := range p.Select.Options {
			options = append(options, slack.NewOptionBlockObject(o.ID, slack.NewTextBlockObject("plain_text", o.Label, false, false), nil))
		}
		placeholder := slack.NewTextBlockObject("plain_text", p.Select.Placeholder, false, false)
		sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, placeholder, p.Select.ID, options...)
		blocks = append(blocks, slack.NewActionBlock("select", sel))
	}

	if len(p.Choices) > 0 {
		elements := make([]slack.BlockElement, 0, len(p.Choices))
		for _, c := range p.Choices {
			btn := slack.NewButtonBlockElement(c.ID, c.ID, slack.NewTextBlockObject("plain_text", c.Label, true, false))
			if c.Danger {
				btn = btn.WithStyle(slack.StyleDanger)
			} else {
				btn = btn.WithStyle(slack.StylePrimary)
			}
			elements = append(elements, btn)
		}
		blocks = append(blocks, slack.NewActionBlock("choices", elements...))
	}

	return slack.NewBlockMessage(blocks...)
}

// ActionFromCallback extracts the member and action from a block_actions interaction.
func ActionFromCallback(cb slack.InteractionCallback) (string, notifier.Action, error) {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return "", notifier.Action{}, fmt.Errorf("unsupported interaction type %q", cb.Type)
	}
	ba := cb.ActionCallback.BlockActions[0]
	value := ""
	if ba.SelectedOption.Value != "" {
		value = ba.SelectedOption.Value
	}
	a, err := notifier.ParseAction(ba.ActionID, value)
	if err != nil {
		return "", notifier.Action{}, err
	}
	return cb.User.ID, a, nil
}
