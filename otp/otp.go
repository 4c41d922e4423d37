// Package otp generates TOTP codes for portal 2FA from otpauth:// URIs.
package otp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Provider generates codes from a stored otpauth://totp/ URI. The clock and
// sleep functions are injectable for tests.
type Provider struct {
	Now   func() time.Time
	Sleep func(time.Duration)
}

// NewProvider returns a provider using the wall clock.
func NewProvider() *Provider {
	return &Provider{Now: time.Now, Sleep: time.Sleep}
}

// ParseURI validates and parses an otpauth://totp/ URI.
func ParseURI(uri string) (*otp.Key, error) {
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		return nil, fmt.Errorf("invalid OTP URI: must start with otpauth://totp/")
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OTP URI: %w", err)
	}
	if key.Secret() == "" {
		return nil, fmt.Errorf("OTP URI is missing the secret parameter")
	}
	return key, nil
}

// Code returns the current TOTP code and the seconds remaining in its period.
func (p *Provider) Code(uri string) (string, int, error) {
	key, err := ParseURI(uri)
	if err != nil {
		return "", 0, err
	}
	now := p.Now()
	period := key.Period()
	if period == 0 {
		period = 30
	}
	code, err := totp.GenerateCodeCustom(key.Secret(), now, totp.ValidateOpts{
		Period:    uint(period),
		Digits:    key.Digits(),
		Algorithm: key.Algorithm(),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	remaining := int(period) - int(now.Unix()%int64(period))
	return code, remaining, nil
}

// FreshCode returns a code with at least minRemaining of validity left,
// sleeping into the next period when the current one is nearly spent. After
// roughly one full period of waiting it returns the current code regardless.
func (p *Provider) FreshCode(uri string, minRemaining time.Duration) (string, error) {
	minSeconds := int(minRemaining / time.Second)
	maxWait := 35
	waited := 0

	for waited < maxWait {
		code, remaining, err := p.Code(uri)
		if err != nil {
			return "", err
		}
		if remaining >= minSeconds {
			return code, nil
		}
		sleep := remaining + 1
		p.Sleep(time.Duration(sleep) * time.Second)
		waited += sleep
	}

	code, _, err := p.Code(uri)
	return code, err
}
