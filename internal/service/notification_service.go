package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/config"
	"github.com/spec-kit/blog-service/internal/events"
)

// Message is an outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a mailer stub.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the envelope. Bodies carry credential links and are not logged.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("sendEmailNotificationStub",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// NotificationService turns account events into emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventVerificationIssued, n.handleVerificationIssued)
	n.dispatcher.Subscribe(events.EventPasswordResetIssued, n.handlePasswordResetIssued)
	n.dispatcher.Subscribe(events.EventEmailVerified, n.handleEmailVerified)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
	n.dispatcher.Subscribe(events.EventRoleChanged, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventRoleUpgradeRequested, n.handleRoleUpgradeRequested)
}

func (n *NotificationService) handleVerificationIssued(ctx context.Context, event events.Event) error {
	n.logger.Info("VerificationIssued", zap.String("username", event.Username))
	link := n.link("/verify-email", event.Token)
	return n.send(ctx, event.Email, "Verify your email",
		fmt.Sprintf("Hello %s,\n\nconfirm your email address by opening %s\n\nThe link expires at %s.",
			event.Username, link, formatExpiry(event)))
}

func (n *NotificationService) handlePasswordResetIssued(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordResetIssued", zap.String("username", event.Username))
	link := n.link("/reset-password", event.Token)
	return n.send(ctx, event.Email, "Reset your password",
		fmt.Sprintf("Hello %s,\n\nset a new password at %s\n\nThe link expires at %s. Ignore this email if you did not ask for it.",
			event.Username, link, formatExpiry(event)))
}

func (n *NotificationService) handleEmailVerified(ctx context.Context, event events.Event) error {
	n.logger.Info("EmailVerified", zap.String("username", event.Username))
	return n.send(ctx, event.Email, "Welcome",
		fmt.Sprintf("Hello %s,\n\nyour email is verified and your account is ready.", event.Username))
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("PasswordChanged", zap.String("username", event.Username))
	return n.send(ctx, event.Email, "Your password was changed",
		fmt.Sprintf("Hello %s,\n\nthe password of your account was just changed.", event.Username))
}

func (n *NotificationService) handleRoleChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RoleChanged",
		zap.String("username", event.Username),
		zap.Stringer("old_role", event.OldRole),
		zap.Stringer("new_role", event.NewRole),
		zap.String("actor", event.Actor))
	return n.send(ctx, event.Email, "Your role was updated",
		fmt.Sprintf("Hello %s,\n\nyour role changed from %s to %s.\nReason: %s",
			event.Username, event.OldRole.Description(), event.NewRole.Description(), event.Reason))
}

func (n *NotificationService) handleRoleUpgradeRequested(ctx context.Context, event events.Event) error {
	n.logger.Info("RoleUpgradeRequested",
		zap.String("username", event.Username),
		zap.Stringer("requested_role", event.NewRole))
	if strings.TrimSpace(n.cfg.AdminEmail) == "" {
		return nil
	}
	return n.send(ctx, n.cfg.AdminEmail, "Role upgrade request",
		fmt.Sprintf("%s (%s) asks to move from %s to %s.\nReason: %s",
			event.Username, event.Email, event.OldRole, event.NewRole, event.Reason))
}

func (n *NotificationService) send(ctx context.Context, to, subject, body string) error {
	if n.mailer == nil || strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return nil
	}
	return n.mailer.Send(ctx, Message{
		From:    n.cfg.EmailFrom,
		To:      to,
		Subject: subject,
		Body:    body,
	})
}

func (n *NotificationService) link(path, token string) string {
	return strings.TrimRight(n.cfg.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func formatExpiry(event events.Event) string {
	if event.ExpiresAt == nil {
		return "unknown"
	}
	return event.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
}
