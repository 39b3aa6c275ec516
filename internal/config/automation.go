package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/mixelka/replywatch/internal/apperr"
)

// Placeholder values written into a freshly created automation file
const (
	PlaceholderUsername = "your_email@gmail.com"
	PlaceholderPassword = "your_app_password"
)

var (
	// ErrPlaceholderCredentials is returned when the automation file still holds the defaults
	ErrPlaceholderCredentials = errors.New("credentials are still set to placeholder values")
	// ErrScheduleNeverFires is returned for a cron expression with no future activation
	ErrScheduleNeverFires = errors.New("schedule never fires")
)

// Automation is the user-edited JSON file describing what to send and where.
// It is read once at startup and never mutated afterwards.
type Automation struct {
	Username             string `mapstructure:"gmail_username"`
	Password             string `mapstructure:"gmail_password"`
	Recipient            string `mapstructure:"recipient_email"`
	Subject              string `mapstructure:"subject"`
	MessageFile          string `mapstructure:"message_file"`
	CheckIntervalMinutes int    `mapstructure:"check_interval_minutes"`
	Schedule             string `mapstructure:"schedule"` // optional cron expression, overrides the interval
	SMTPServer           string `mapstructure:"smtp_server"`
	SMTPPort             int    `mapstructure:"smtp_port"`
	IMAPServer           string `mapstructure:"imap_server"`
	IMAPPort             int    `mapstructure:"imap_port"`
}

func setAutomationDefaults(v *viper.Viper) {
	v.SetDefault("gmail_username", PlaceholderUsername)
	v.SetDefault("gmail_password", PlaceholderPassword)
	v.SetDefault("recipient_email", "recipient@example.com")
	v.SetDefault("subject", "Automated Email - Waiting for Reply")
	v.SetDefault("message_file", "message_template.txt")
	v.SetDefault("check_interval_minutes", 120)
	v.SetDefault("smtp_server", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("imap_server", "imap.gmail.com")
	v.SetDefault("imap_port", 993)
}

// LoadAutomation reads the automation file at path. If the file does not
// exist it is created with the documented defaults and created is true.
func LoadAutomation(path string) (cfg *Automation, created bool, err error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setAutomationDefaults(v)

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, false, fmt.Errorf("failed to create config directory %s: %w", dir, err)
			}
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, false, fmt.Errorf("failed to write default config %s: %w", path, err)
		}
		created = true
	} else if err := v.ReadInConfig(); err != nil {
		return nil, false, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg = &Automation{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, created, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Recipient = strings.TrimSpace(cfg.Recipient)
	cfg.SMTPServer = strings.TrimSpace(cfg.SMTPServer)
	cfg.IMAPServer = strings.TrimSpace(cfg.IMAPServer)

	return cfg, created, nil
}

// Validate refuses placeholder credentials and incomplete settings.
// Every returned error is of kind apperr.KindConfiguration.
func (a *Automation) Validate() error {
	const op = "validate config"

	if a.Username == PlaceholderUsername || a.Password == PlaceholderPassword {
		return apperr.New(apperr.KindConfiguration, op, ErrPlaceholderCredentials)
	}

	var problems []string
	if a.Username == "" {
		problems = append(problems, "gmail_username is empty")
	}
	if a.Password == "" {
		problems = append(problems, "gmail_password is empty")
	}
	if a.Recipient == "" {
		problems = append(problems, "recipient_email is empty")
	}
	if a.Schedule == "" && a.CheckIntervalMinutes <= 0 {
		problems = append(problems, "check_interval_minutes must be positive")
	}
	if a.SMTPPort < 0 || a.SMTPPort > 65535 {
		problems = append(problems, fmt.Sprintf("smtp_port %d out of range", a.SMTPPort))
	}
	if a.IMAPPort < 0 || a.IMAPPort > 65535 {
		problems = append(problems, fmt.Sprintf("imap_port %d out of range", a.IMAPPort))
	}
	if len(problems) > 0 {
		return apperr.New(apperr.KindConfiguration, op, errors.New(strings.Join(problems, "; ")))
	}

	sched, err := a.CronSchedule()
	if err != nil {
		return apperr.New(apperr.KindConfiguration, op, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return apperr.New(apperr.KindConfiguration, op, fmt.Errorf("%w: %q", ErrScheduleNeverFires, a.Schedule))
	}

	return nil
}

// CheckInterval returns the interval between ticks
func (a *Automation) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalMinutes) * time.Minute
}

// CronSchedule returns the tick schedule: the cron expression when set,
// otherwise a constant delay of CheckInterval.
func (a *Automation) CronSchedule() (cron.Schedule, error) {
	if a.Schedule != "" {
		sched, err := cron.ParseStandard(a.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", a.Schedule, err)
		}
		return sched, nil
	}
	return cron.Every(a.CheckInterval()), nil
}

// SMTPAddr returns host:port of the submission server
func (a *Automation) SMTPAddr() string {
	return net.JoinHostPort(a.SMTPServer, strconv.Itoa(a.SMTPPort))
}

// IMAPAddr returns host:port of the mailbox server
func (a *Automation) IMAPAddr() string {
	return net.JoinHostPort(a.IMAPServer, strconv.Itoa(a.IMAPPort))
}
