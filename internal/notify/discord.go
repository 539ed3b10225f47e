package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/playperu/manhunt/internal/manhunt"
)

// ErrQueueFull is returned when the Discord sender is too far behind to
// accept another message.
var ErrQueueFull = errors.New("discord send queue is full")

// dmSession is the part of *discordgo.Session the notifier uses.
type dmSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type dm struct {
	to   manhunt.PersonID
	text string
}

// Discord delivers notifications as direct messages. Person ids are Discord
// user ids. Messages are queued and sent by Run, paced by a rate limiter.
type Discord struct {
	session dmSession
	limiter *rate.Limiter
	queue   chan dm
	logger  *slog.Logger

	mu       sync.Mutex
	channels map[manhunt.PersonID]string
}

// NewDiscord opens a bot session for token. perSecond bounds outgoing DMs.
func NewDiscord(token string, perSecond float64, logger *slog.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return newDiscord(session, perSecond, logger), nil
}

func newDiscord(session dmSession, perSecond float64, logger *slog.Logger) *Discord {
	return &Discord{
		session:  session,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		queue:    make(chan dm, 256),
		logger:   logger,
		channels: make(map[manhunt.PersonID]string),
	}
}

func (d *Discord) SendText(_ context.Context, to manhunt.PersonID, text string) error {
	return d.enqueue(dm{to: to, text: text})
}

// SendLocation sends a map link; DMs have no native location message.
func (d *Discord) SendLocation(_ context.Context, to manhunt.PersonID, lat, lon float64) error {
	return d.enqueue(dm{to: to, text: MapLink(lat, lon)})
}

// MapLink is a maps URL centred on the coordinates.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("📍 https://maps.google.com/?q=%.6f,%.6f", lat, lon)
}

func (d *Discord) enqueue(m dm) error {
	select {
	case d.queue <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run sends queued messages until ctx is done. Failed sends are logged and
// dropped.
func (d *Discord) Run(ctx context.Context) error {
	d.logger.Info("discord sender started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("discord sender stopped", "pending", len(d.queue))
			return nil
		case m := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := d.send(m); err != nil {
				d.logger.Warn("discord dm failed", "person_id", m.to, "error", err)
			}
		}
	}
}

func (d *Discord) send(m dm) error {
	channelID, err := d.channel(m.to)
	if err != nil {
		return err
	}
	if _, err := d.session.ChannelMessageSend(channelID, m.text); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// channel returns the DM channel with p, opening it on first use.
func (d *Discord) channel(p manhunt.PersonID) (string, error) {
	d.mu.Lock()
	id, ok := d.channels[p]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	ch, err := d.session.UserChannelCreate(string(p))
	if err != nil {
		return "", fmt.Errorf("opening dm channel: %w", err)
	}
	d.mu.Lock()
	d.channels[p] = ch.ID
	d.mu.Unlock()
	return ch.ID, nil
}

// Check reports whether the bot token is accepted by Discord.
func (d *Discord) Check(context.Context) error {
	s, ok := d.session.(*discordgo.Session)
	if !ok {
		return nil
	}
	_, err := s.User("@me")
	return err
}
