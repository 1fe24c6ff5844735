package views

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/contactdesk/internal/store"
)

func TestRenderer_RenderLogin(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, r.RenderLogin(rr, http.StatusOK, LoginPage{}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `action="/admin/login"`)
	assert.NotContains(t, rr.Body.String(), `class="error"`)

	rr = httptest.NewRecorder()
	require.NoError(t, r.RenderLogin(rr, http.StatusUnauthorized, LoginPage{
		Error:    "Invalid credentials",
		Username: `<script>alert(1)</script>`,
	}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Invalid credentials")
	assert.NotContains(t, body, "<script>alert(1)</script>")
}

func TestRenderer_RenderDashboard(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, r.RenderDashboard(rr, http.StatusOK, DashboardPage{
		Username: "admin",
		Messages: []*store.ContactMessage{
			{
				ID:        2,
				Name:      "Newer <b>Sender</b>",
				Email:     "newer@example.com",
				Message:   "second",
				CreatedAt: time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC),
			},
			{
				ID:        1,
				Name:      "Older Sender",
				Email:     "older@example.com",
				Phone:     "+381 11 123",
				Message:   "first",
				CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
			},
		},
	}))

	body := rr.Body.String()
	assert.Contains(t, body, "<strong>admin</strong>")
	assert.Contains(t, body, "2024-03-02 09:30:00")
	assert.Contains(t, body, "Newer &lt;b&gt;Sender&lt;/b&gt;")
	assert.Less(t, strings.Index(body, "newer@example.com"), strings.Index(body, "older@example.com"))
	assert.NotContains(t, body, "No messages yet.")
}

func TestRenderer_RenderDashboard_Empty(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, r.RenderDashboard(rr, http.StatusOK, DashboardPage{Username: "admin"}))
	assert.Contains(t, rr.Body.String(), "No messages yet.")
}

func TestRenderer_UnknownPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = r.render(rr, "nope.html", http.StatusOK, nil)
	assert.EqualError(t, err, "unknown page: nope.html")
}
