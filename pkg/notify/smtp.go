package notify

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	sendTimeout       = 30 * time.Second
)

// sender is the subset of *mail.Client used for delivery.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	AdminEmail    string
	AppName       string
	OTPExpiryMins int
	MaxRetries    uint64
	RetryDelay    time.Duration
}

// SMTPNotifier sends HTML mail through an SMTP relay, retrying transient
// failures with exponential backoff.
type SMTPNotifier struct {
	client sender
	cfg    SMTPConfig
	log    *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, log *zap.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, errors.New("smtp host and username are required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(sendTimeout),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newSMTPNotifier(client, cfg, log), nil
}

func newSMTPNotifier(client sender, cfg SMTPConfig, log *zap.Logger) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.AdminEmail == "" {
		cfg.AdminEmail = cfg.Username
	}
	if cfg.AppName == "" {
		cfg.AppName = "identity-core"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &SMTPNotifier{
		client: client,
		cfg:    cfg,
		log:    log.With(zap.String("component", "smtp_notifier")),
	}
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, email string) error {
	return n.send(ctx, email, "Welcome to "+n.cfg.AppName, welcomeTemplate, templateData{Email: email})
}

func (n *SMTPNotifier) SendOTPCode(ctx context.Context, email, code string) error {
	return n.send(ctx, email, "Your verification code", otpTemplate, templateData{
		Email:         email,
		Code:          code,
		ExpiryMinutes: n.cfg.OTPExpiryMins,
	})
}

func (n *SMTPNotifier) SendPasswordResetNotice(ctx context.Context, email string) error {
	return n.send(ctx, email, "Your password was reset", resetTemplate, templateData{Email: email})
}

func (n *SMTPNotifier) NotifyAdminEvent(ctx context.Context, action, actorEmail string, metadata map[string]string) error {
	return n.send(ctx, n.cfg.AdminEmail, "Admin activity: "+action, adminEventTemplate, templateData{
		Email:    actorEmail,
		Action:   action,
		Metadata: sortedMetadata(metadata),
	})
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject string, tpl *template.Template, data templateData) error {
	data.AppName = n.cfg.AppName

	msg := mail.NewMsg()
	if err := msg.FromFormat(n.cfg.AppName, n.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(tpl, data); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}

	backoff := retry.WithMaxRetries(n.cfg.MaxRetries, retry.NewExponential(n.cfg.RetryDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
			n.log.Warn("Mail delivery attempt failed",
				zap.String("subject", subject),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send %q after %d attempts: %w", subject, attempt, err)
	}
	return nil
}
