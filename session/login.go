package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/fteops/dutyrecon/models"
	"github.com/fteops/dutyrecon/portal"
)

// Login page selectors.
const (
	usernameSelector     = "#lName"
	passwordSelector     = "#pass"
	loginSubmitSelector  = "input[type=submit]"
	otpInputSelector     = "#tfa"
	otpSubmitSelector    = "#tfaForm > div:nth-child(2) > input[type=submit]"
	loginSuccessSelector = "#menuTableBody"
)

// loginTimeout bounds the whole browser login including 2FA.
const loginTimeout = 120 * time.Second

// minOTPValidity is the minimum remaining TOTP validity before the code is
// typed; a code about to roll over could expire mid-submit.
const minOTPValidity = 5 * time.Second

// browserLogin drives a headless browser through the portal login form,
// handles 2FA when the broker requires it, and snapshots the resulting
// cookies into a session state. It is the only browser-driven flow; every
// later portal call rides the captured cookie jar over plain HTTP.
func (m *Manager) browserLogin(ctx context.Context, broker models.Broker) (*models.SessionState, error) {
	log := m.log.WithField("broker_id", broker.ID)
	log.Info("starting browser login")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, loginTimeout)
	defer cancelTimeout()

	tasks := chromedp.Tasks{
		chromedp.Navigate(m.baseURL + portal.LoginPath),
		chromedp.WaitVisible(usernameSelector),
		chromedp.SendKeys(usernameSelector, broker.Username),
		chromedp.SendKeys(passwordSelector, broker.Password),
		chromedp.Click(loginSubmitSelector),
	}

	if broker.AuthRequired {
		tasks = append(tasks,
			chromedp.WaitVisible(otpInputSelector),
			chromedp.ActionFunc(func(ctx context.Context) error {
				code, err := m.otp.FreshCode(broker.OTPURI, minOTPValidity)
				if err != nil {
					return fmt.Errorf("failed to generate TOTP code: %w", err)
				}
				log.Info("submitting 2FA code")
				return chromedp.SendKeys(otpInputSelector, code).Do(ctx)
			}),
			chromedp.Click(otpSubmitSelector),
		)
	}

	var cookies []*network.Cookie
	tasks = append(tasks,
		chromedp.WaitVisible(loginSuccessSelector),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("browser login failed: %w", err)
	}

	state := stateFromCookies(cookies)
	log.WithField("cookies", len(state.Cookies)).Info("browser login completed")
	return state, nil
}

// stateFromCookies converts the browser cookie dump into the persisted
// session shape.
func stateFromCookies(cookies []*network.Cookie) *models.SessionState {
	state := &models.SessionState{Origins: []json.RawMessage{}}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, models.SessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return state
}
