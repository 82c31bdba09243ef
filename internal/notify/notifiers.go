package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "Notification", "key", n.Key, "title", n.Title, "body", n.Body)
	return nil
}

// embedSender is the part of *discordgo.Session the notifier uses.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications as embeds to one channel.
type DiscordNotifier struct {
	session   embedSender
	channelID string
}

const discordColor = 0x2e7d32

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(channelID) == "" {
		return nil, errors.New("discord token and channel id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

func (d *DiscordNotifier) Notify(ctx context.Context, n Notification) error {
	_, err := d.session.ChannelMessageSendEmbed(d.channelID, &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
		Color:       discordColor,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
