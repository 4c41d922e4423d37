package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/models"
	"github.com/fteops/dutyrecon/otp"
	"github.com/fteops/dutyrecon/portal"
)

// probeTimeout bounds the session validation GET.
const probeTimeout = 10 * time.Second

// loginFunc performs a browser login and returns the captured session state.
type loginFunc func(ctx context.Context, broker models.Broker) (*models.SessionState, error)

// Manager owns per-broker session lifecycle: it probes persisted sessions
// over HTTP and falls back to a fresh browser login, persisting the result.
// The browser is guarded by a single-slot semaphore; concurrent 2FA logins
// would race over TOTP codes.
type Manager struct {
	store       *Store
	baseURL     string
	otp         *otp.Provider
	log         logrus.FieldLogger
	now         func() time.Time
	browserSlot chan struct{}
	login       loginFunc
}

// NewManager builds a Manager probing and logging into baseURL.
func NewManager(store *Store, baseURL string, log logrus.FieldLogger) *Manager {
	if baseURL == "" {
		baseURL = portal.DefaultBaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		store:       store,
		baseURL:     strings.TrimRight(baseURL, "/"),
		otp:         otp.NewProvider(),
		log:         log,
		now:         time.Now,
		browserSlot: make(chan struct{}, 1),
	}
	m.login = m.browserLogin
	return m
}

// AcquireSession returns a valid authenticated session state for the broker.
// A persisted state is reused when its expiry hint has not passed and the
// HTTP probe confirms it; otherwise a fresh login runs and is persisted.
func (m *Manager) AcquireSession(ctx context.Context, broker models.Broker) (*models.SessionState, error) {
	log := m.log.WithField("broker_id", broker.ID)

	if state := m.store.Load(broker.ID); state != nil {
		if state.Expired(m.now()) {
			log.Info("persisted session past its expiry hint, logging in fresh")
		} else if m.IsValid(ctx, state) {
			log.Info("persisted session reused")
			return state, nil
		} else {
			log.Info("persisted session invalid, logging in fresh")
		}
	}

	select {
	case m.browserSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.browserSlot }()

	state, err := m.login(ctx, broker)
	if err != nil {
		return nil, fmt.Errorf("login failed for broker %s: %w", broker.Name, err)
	}
	state.ComputeExpiry(m.now())

	if err := m.store.Save(broker.ID, state); err != nil {
		log.WithError(err).Warn("failed to persist session state")
	}
	return state, nil
}

// IsValid probes the AMS search page with the state's cookies. The session is
// valid when the response carries the AMS page anchor and not the login form.
// Probe failures never raise; they report invalid and trigger a login.
func (m *Manager) IsValid(ctx context.Context, state *models.SessionState) bool {
	jar, err := Jar(state, m.baseURL)
	if err != nil {
		return false
	}
	client := &http.Client{Jar: jar, Timeout: probeTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+portal.AMSIndexPath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", portal.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		m.log.WithError(err).Debug("session probe failed")
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find("#lName").Length() > 0 {
		return false
	}
	if doc.Find("#pre").Length() > 0 {
		return true
	}

	// Ambiguous page: fall back to checking where redirects landed us.
	final := strings.ToLower(resp.Request.URL.String())
	return !strings.Contains(final, "security") && !strings.Contains(final, "login")
}

// Jar builds an HTTP cookie jar seeded from a session state, scoped to the
// portal host.
func Jar(state *models.SessionState, baseURL string) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal URL: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		cookies = append(cookies, cookie)
	}
	jar.SetCookies(u, cookies)
	return jar, nil
}
