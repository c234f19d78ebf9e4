// Package notify delivers one-time verification codes by SMS.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// PhonePlaceholder in a service URL is replaced by the escaped recipient number.
const PhonePlaceholder = "{phone}"

// Sender delivers a short text message to a phone number.
type Sender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// ShoutrrrSender sends through one or more shoutrrr service URLs.
type ShoutrrrSender struct {
	urls    []string
	timeout time.Duration
}

// NewShoutrrrSender checks that every URL template parses into a shoutrrr
// service before any code is sent.
func NewShoutrrrSender(urls []string, timeout time.Duration) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	s := &ShoutrrrSender{urls: slices.Clone(urls), timeout: timeout}
	if _, err := shoutrrr.CreateSender(s.expand("+10000000000")...); err != nil {
		return nil, fmt.Errorf("invalid sms url: %w", err)
	}
	return s, nil
}

func (s *ShoutrrrSender) expand(phone string) []string {
	escaped := url.QueryEscape(phone)
	out := make([]string, len(s.urls))
	for i, u := range s.urls {
		out[i] = strings.ReplaceAll(u, PhonePlaceholder, escaped)
	}
	return out
}

func (s *ShoutrrrSender) SendSMS(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sender, err := shoutrrr.CreateSender(s.expand(phone)...)
	if err != nil {
		return fmt.Errorf("creating sms sender: %w", err)
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	params.SetTitle("AgroDoc")
	for _, err := range sender.Send(message, &params) {
		if err != nil {
			return fmt.Errorf("sending sms: %w", err)
		}
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMS gateway is configured.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) SendSMS(_ context.Context, phone, message string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("sms delivery disabled, message logged", "phone", maskPhone(phone), "message", message)
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// VerificationMessage is the text sent with a phone verification code.
func VerificationMessage(code string) string {
	return "Your AgroDoc verification code: " + code
}
