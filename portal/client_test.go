package portal

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnServerErrors(t *testing.T) {
	m := newMockPortal(t)
	attempts := 0
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			http.Error(w, "temporarily overloaded", http.StatusBadGateway)
			return
		}
		w.Write([]byte(amsSearchHTML("/app/ams/mawbMenu.do?amsMawbId=1", "01/05/24", "10")))
	})
	m.handle("/app/ams/mawbMenu.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsMasterHTML("9", "$1.00", "1", "1")))
	})

	res, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "10", res.TotalHAWBs)
}

func TestNoRetryOnClientErrors(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	require.Error(t, err)
	assert.Equal(t, 1, m.hits("/app/ams/viewMawbs.do"))
}

func TestUserAgentAndOriginHeaders(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, m.server.URL, r.Header.Get("Origin"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		w.Write([]byte(amsSearchHTML("/x", "01/05/24", "10")))
	})
	m.handle("/x", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsMasterHTML("1", "$1.00", "1", "1")))
	})

	_, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	require.NoError(t, err)
}
