// Package bot is the Telegram front-end: it turns operator chat commands into
// mailbox issuances and delivers screenshots and status answers back.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/eventlog"
	"github.com/telepult-io/telepult/internal/guard"
	"github.com/telepult-io/telepult/internal/mailbox"
	"github.com/telepult-io/telepult/internal/producer"
	"github.com/telepult-io/telepult/internal/status"
)

type Bot struct {
	api          *tgbotapi.BotAPI
	producer     *producer.Producer
	status       *status.Reader
	events       *eventlog.Buffer
	operatorChat int64
	allowed      map[int64]struct{}
}

func New(cfg *config.Config, p *producer.Producer, r *status.Reader, events *eventlog.Buffer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization: %w", err)
	}

	allowed := make(map[int64]struct{}, len(cfg.AllowedUsers))
	for _, id := range cfg.AllowedUsers {
		allowed[id] = struct{}{}
	}

	return &Bot{
		api:          api,
		producer:     p,
		status:       r,
		events:       events,
		operatorChat: cfg.OperatorChat,
		allowed:      allowed,
	}, nil
}

// Run consumes Telegram updates until the context closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.UpdateTimeout
	updates := b.api.GetUpdatesChan(u)

	slog.Info("telegram front-end started", "bot", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if _, ok := b.allowed[userID]; !ok {
		b.events.Log("access_denied", fmt.Sprint(userID), msg.Command())
		slog.Warn("command from unauthorized user", "user", userID, "command", msg.Command())
		return
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = b.statusText(ctx)
	case "machines":
		reply = b.machinesText(ctx)
	default:
		reply = b.issue(ctx, userID, msg.Command(), msg.CommandArguments())
	}

	if b.events.Full() {
		if err := b.events.Flush(ctx); err != nil {
			slog.Warn("event log flush failed", "error", err)
		}
	}

	if reply == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		slog.Warn("failed to send reply", "chat", msg.Chat.ID, "error", err)
	}
}

// issue maps a chat command onto a mailbox issuance and renders the outcome.
func (b *Bot) issue(ctx context.Context, userID int64, name, args string) string {
	req, err := parseRequest(name, args)
	if errors.Is(err, errUnknownCommand) {
		return "Unknown command. See /machines and /status, or a control command like /shutdown."
	}
	if err != nil {
		return err.Error()
	}

	target, problem := b.resolveTarget(ctx, req.target)
	if problem != "" {
		return problem
	}

	issuer := fmt.Sprint(userID)
	id, err := b.producer.Issue(ctx, issuer, req.typ, target, req.params)
	switch {
	case errors.Is(err, guard.ErrCooldown):
		return "That command was issued moments ago. Wait a little before retrying."
	case errors.Is(err, guard.ErrAlreadyExecuted):
		return "That exact command has already been carried out."
	case errors.Is(err, mailbox.ErrDuplicatePending):
		return "The same command is already queued and waiting for the machine."
	case err != nil:
		// store failure: the command may or may not have been queued, promise nothing
		slog.Error("issuance failed", "type", req.typ, "error", err)
		return "Could not queue the command. Please try again."
	}

	return fmt.Sprintf("Queued %s for %s (command #%d).", req.typ, target, id)
}

// resolveTarget picks the destination machine and returns either the machine
// ID or a message for the operator. An explicit machine must be available;
// with none given, a single available machine is the obvious pick.
func (b *Bot) resolveTarget(ctx context.Context, explicit string) (target, problem string) {
	machines, err := b.status.ListAvailable(ctx)
	if err != nil {
		slog.Error("status document unreadable", "error", err)
		return "", "Could not read machine status. Please try again."
	}

	if explicit != "" {
		for _, m := range machines {
			if m.MachineID == explicit || m.Hostname == explicit {
				return m.MachineID, ""
			}
		}
		return "", fmt.Sprintf("Machine %q is not available right now. See /machines.", explicit)
	}

	switch len(machines) {
	case 0:
		return "", "No machines are available right now."
	case 1:
		return machines[0].MachineID, ""
	default:
		return "", "Several machines are available, name one with @machine. See /machines."
	}
}

func (b *Bot) statusText(ctx context.Context) string {
	avail, err := b.status.Availability(ctx)
	if err != nil {
		slog.Error("status document unreadable", "error", err)
		return "Could not read machine status. Please try again."
	}
	return renderStatus(avail)
}

func (b *Bot) machinesText(ctx context.Context) string {
	machines, err := b.status.ListAvailable(ctx)
	if err != nil {
		slog.Error("status document unreadable", "error", err)
		return "Could not read machine status. Please try again."
	}
	if len(machines) == 0 {
		return "No machines are available right now."
	}

	text := "Available machines:\n"
	for _, m := range machines {
		text += fmt.Sprintf("- %s (%s)\n", m.MachineID, m.Hostname)
	}
	return text
}

// SendImage delivers a screenshot to the operator chat as a photo.
func (b *Bot) SendImage(_ context.Context, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(b.operatorChat, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	_, err := b.api.Send(photo)
	return err
}

// SendDocument delivers a non-image artifact to the operator chat as a file.
func (b *Bot) SendDocument(_ context.Context, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(b.operatorChat, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	_, err := b.api.Send(doc)
	return err
}
