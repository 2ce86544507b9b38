// Package notify dispatches the operator notification that fires when a new
// device is first seen and parked pending. Dispatch happens in the route
// layer; the decision engine itself never notifies.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/inbucket/html2text"
	"github.com/wneessen/go-mail"
)

// SMTPConfig is the mail transport configuration.
type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// Comma separated operator addresses.
	To string `mapstructure:"to"`
}

// Notifier sends pending-device notifications. It deduplicates per
// user+device so repeated admission attempts from the same pending device
// fire a single mail.
type Notifier struct {
	cfg    SMTPConfig
	logger *slog.Logger

	mu       sync.Mutex
	notified map[string]struct{}
}

func New(cfg SMTPConfig) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   slog.With("component", "notify"),
		notified: make(map[string]struct{}),
	}
}

// DevicePending notifies operators about a newly created pending device.
// approveURL is the admin deep-link for the approval action.
func (n *Notifier) DevicePending(userID, deviceID, clientIP, approveURL string) {
	if !n.cfg.Enabled {
		return
	}

	key := userID + "/" + deviceID
	n.mu.Lock()
	if _, seen := n.notified[key]; seen {
		n.mu.Unlock()
		return
	}
	n.notified[key] = struct{}{}
	n.mu.Unlock()

	subject := fmt.Sprintf("New device pending approval for %s", userID)
	html := fmt.Sprintf(
		`<p>A new device tried to start a stream and is waiting for approval.</p>
<ul>
<li>User: <b>%s</b></li>
<li>Device: <b>%s</b></li>
<li>Source IP: %s</li>
</ul>
<p><a href="%s">Approve or reject this device</a></p>`,
		userID, deviceID, clientIP, approveURL)

	if err := n.send(subject, html); err != nil {
		n.logger.Error("Failed to send pending-device notification",
			"user_id", userID, "device_id", deviceID, "error", err)
		// Allow a retry on the next admission attempt
		n.mu.Lock()
		delete(n.notified, key)
		n.mu.Unlock()
		return
	}
	n.logger.Info("Pending-device notification sent", "user_id", userID, "device_id", deviceID)
}

func (n *Notifier) send(subject, html string) error {
	text, err := html2text.FromString(html)
	if err != nil {
		return fmt.Errorf("failed to convert HTML to text: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	for _, addr := range strings.Split(n.cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr == "" {
			continue
		}
		if err := msg.AddTo(addr); err != nil {
			return fmt.Errorf("invalid to address %q: %w", addr, err)
		}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	return client.DialAndSend(msg)
}
