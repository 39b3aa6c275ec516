package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mixelka/replywatch/internal/config"
)

// Server is a mail server host with its port
type Server struct {
	Host string
	Port int
}

// Servers holds the submission and mailbox servers of one provider
type Servers struct {
	SMTP Server
	IMAP Server
}

// Common servers for popular email providers
var knownServers = map[string]Servers{
	"gmail.com":      {SMTP: Server{"smtp.gmail.com", 587}, IMAP: Server{"imap.gmail.com", 993}},
	"googlemail.com": {SMTP: Server{"smtp.gmail.com", 587}, IMAP: Server{"imap.gmail.com", 993}},
	"outlook.com":    {SMTP: Server{"smtp.office365.com", 587}, IMAP: Server{"outlook.office365.com", 993}},
	"hotmail.com":    {SMTP: Server{"smtp.office365.com", 587}, IMAP: Server{"outlook.office365.com", 993}},
	"live.com":       {SMTP: Server{"smtp.office365.com", 587}, IMAP: Server{"outlook.office365.com", 993}},
	"msn.com":        {SMTP: Server{"smtp.office365.com", 587}, IMAP: Server{"outlook.office365.com", 993}},
	"yahoo.com":      {SMTP: Server{"smtp.mail.yahoo.com", 465}, IMAP: Server{"imap.mail.yahoo.com", 993}},
	"yahoo.co.uk":    {SMTP: Server{"smtp.mail.yahoo.com", 465}, IMAP: Server{"imap.mail.yahoo.com", 993}},
	"yandex.ru":      {SMTP: Server{"smtp.yandex.ru", 465}, IMAP: Server{"imap.yandex.ru", 993}},
	"yandex.com":     {SMTP: Server{"smtp.yandex.com", 465}, IMAP: Server{"imap.yandex.com", 993}},
	"mail.ru":        {SMTP: Server{"smtp.mail.ru", 465}, IMAP: Server{"imap.mail.ru", 993}},
	"bk.ru":          {SMTP: Server{"smtp.mail.ru", 465}, IMAP: Server{"imap.mail.ru", 993}},
	"list.ru":        {SMTP: Server{"smtp.mail.ru", 465}, IMAP: Server{"imap.mail.ru", 993}},
	"inbox.ru":       {SMTP: Server{"smtp.mail.ru", 465}, IMAP: Server{"imap.mail.ru", 993}},
	"icloud.com":     {SMTP: Server{"smtp.mail.me.com", 587}, IMAP: Server{"imap.mail.me.com", 993}},
	"me.com":         {SMTP: Server{"smtp.mail.me.com", 587}, IMAP: Server{"imap.mail.me.com", 993}},
	"mac.com":        {SMTP: Server{"smtp.mail.me.com", 587}, IMAP: Server{"imap.mail.me.com", 993}},
	"aol.com":        {SMTP: Server{"smtp.aol.com", 465}, IMAP: Server{"imap.aol.com", 993}},
	"zoho.com":       {SMTP: Server{"smtp.zoho.com", 465}, IMAP: Server{"imap.zoho.com", 993}},
	"protonmail.com": {SMTP: Server{"127.0.0.1", 1025}, IMAP: Server{"127.0.0.1", 1143}}, // ProtonMail Bridge
	"proton.me":      {SMTP: Server{"127.0.0.1", 1025}, IMAP: Server{"127.0.0.1", 1143}},
	"fastmail.com":   {SMTP: Server{"smtp.fastmail.com", 465}, IMAP: Server{"imap.fastmail.com", 993}},
	"gmx.com":        {SMTP: Server{"mail.gmx.com", 587}, IMAP: Server{"imap.gmx.com", 993}},
	"gmx.de":         {SMTP: Server{"mail.gmx.net", 587}, IMAP: Server{"imap.gmx.net", 993}},
	"web.de":         {SMTP: Server{"smtp.web.de", 587}, IMAP: Server{"imap.web.de", 993}},
	"t-online.de":    {SMTP: Server{"securesmtp.t-online.de", 465}, IMAP: Server{"secureimap.t-online.de", 993}},
	"rambler.ru":     {SMTP: Server{"smtp.rambler.ru", 465}, IMAP: Server{"imap.rambler.ru", 993}},
}

// Resolver determines mail servers for an address
type Resolver struct {
	probe func(ctx context.Context, host string, port int) bool
}

// NewResolver creates a resolver that probes candidate hosts over TCP
func NewResolver() *Resolver {
	return &Resolver{probe: checkServer}
}

// Resolve determines the servers for an email address. Known providers are
// answered from a table; other domains are probed as imap.<domain>,
// mail.<domain> and the bare domain, falling back to imap./smtp.<domain>.
func (r *Resolver) Resolve(ctx context.Context, email string) (Servers, error) {
	domain := GetDomainFromEmail(email)
	if domain == "" {
		return Servers{}, fmt.Errorf("invalid email format: %q", email)
	}

	if servers, ok := knownServers[domain]; ok {
		return servers, nil
	}

	servers := Servers{
		SMTP: Server{"smtp." + domain, 587},
		IMAP: Server{"imap." + domain, 993},
	}
	for _, prefix := range []string{"imap.", "mail.", ""} {
		host := prefix + domain
		if r.probe(ctx, host, 993) {
			servers.IMAP.Host = host
			break
		}
	}
	for _, prefix := range []string{"smtp.", "mail.", ""} {
		host := prefix + domain
		if r.probe(ctx, host, 587) {
			servers.SMTP.Host = host
			break
		}
	}

	return servers, nil
}

// Fill completes blank server settings of cfg from the username's domain.
// Explicit settings are never overridden.
func (r *Resolver) Fill(ctx context.Context, cfg *config.Automation) error {
	if cfg.SMTPServer != "" && cfg.SMTPPort != 0 && cfg.IMAPServer != "" && cfg.IMAPPort != 0 {
		return nil
	}

	servers, err := r.Resolve(ctx, cfg.Username)
	if err != nil {
		return err
	}

	if cfg.SMTPServer == "" {
		cfg.SMTPServer = servers.SMTP.Host
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = servers.SMTP.Port
	}
	if cfg.IMAPServer == "" {
		cfg.IMAPServer = servers.IMAP.Host
	}
	if cfg.IMAPPort == 0 {
		cfg.IMAPPort = servers.IMAP.Port
	}
	return nil
}

// checkServer checks if a server accepts TCP connections
func checkServer(ctx context.Context, host string, port int) bool {
	dialer := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// GetDomainFromEmail extracts domain from email address
func GetDomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
