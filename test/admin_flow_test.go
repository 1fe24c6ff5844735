//go:build integration_test || all_tests

package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/contactdesk/internal/auth"
	"github.com/2beens/contactdesk/internal/store"
)

func (s *IntegrationTestSuite) postForm(ctx context.Context, path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t := s.T()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "test-agent")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (s *IntegrationTestSuite) get(ctx context.Context, path string, cookies ...*http.Cookie) *http.Response {
	t := s.T()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (s *IntegrationTestSuite) login(ctx context.Context) *http.Cookie {
	t := s.T()
	resp := s.postForm(ctx, "/admin/login", url.Values{
		"username": {store.DefaultAdminUsername},
		"password": {store.DefaultAdminPassword},
	})
	readBody(resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin", resp.Header.Get("Location"))

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	return cookie
}

func (s *IntegrationTestSuite) TestDashboardRequiresSession() {
	t := s.T()
	ctx := context.Background()

	resp := s.get(ctx, "/admin")
	readBody(resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))

	resp = s.get(ctx, "/admin", &http.Cookie{Name: auth.CookieName, Value: "garbage"})
	readBody(resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func (s *IntegrationTestSuite) TestLoginFailures() {
	t := s.T()
	ctx := context.Background()

	cases := map[string]struct {
		form           url.Values
		expectedStatus int
		expectedText   string
	}{
		"missing password": {
			form:           url.Values{"username": {store.DefaultAdminUsername}},
			expectedStatus: http.StatusBadRequest,
			expectedText:   "Missing credentials",
		},
		"wrong password": {
			form: url.Values{
				"username": {store.DefaultAdminUsername},
				"password": {"not-the-password"},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedText:   "Invalid credentials",
		},
		"unknown user": {
			form: url.Values{
				"username": {"nobody"},
				"password": {store.DefaultAdminPassword},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedText:   "Invalid credentials",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := s.postForm(ctx, "/admin/login", tc.form)
			body := readBody(resp)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
			assert.Contains(t, body, tc.expectedText)
			assert.Nil(t, sessionCookie(resp))
		})
	}
}

func (s *IntegrationTestSuite) TestContactThenDashboardThenLogout() {
	t := s.T()
	ctx := context.Background()

	name := gofakeit.Name()
	email := gofakeit.Email()
	message := gofakeit.Sentence(8)

	resp := s.postForm(ctx, "/contact", url.Values{
		"name":    {name},
		"email":   {email},
		"phone":   {gofakeit.Phone()},
		"message": {message},
	})
	readBody(resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/#cont", resp.Header.Get("Location"))

	var count int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contact_messages WHERE email = $1", email,
	).Scan(&count))
	assert.Equal(t, 1, count)

	cookie := s.login(ctx)

	resp = s.get(ctx, "/admin", cookie)
	body := readBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, store.DefaultAdminUsername)
	assert.Contains(t, body, email)

	resp = s.get(ctx, "/admin/logout", cookie)
	readBody(resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))

	// the old cookie must not open the dashboard anymore
	resp = s.get(ctx, "/admin", cookie)
	readBody(resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func (s *IntegrationTestSuite) TestContactValidation() {
	t := s.T()
	ctx := context.Background()

	resp := s.postForm(ctx, "/contact", url.Values{"name": {gofakeit.Name()}})
	body := readBody(resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Name and Email are required", strings.TrimSpace(body))
}

func (s *IntegrationTestSuite) TestMessagesNewestFirst() {
	t := s.T()
	ctx := context.Background()

	var emails []string
	for i := 0; i < 3; i++ {
		email := fmt.Sprintf("order-%d-%s", i, gofakeit.Email())
		emails = append(emails, email)
		resp := s.postForm(ctx, "/contact", url.Values{
			"name":  {gofakeit.Name()},
			"email": {email},
		})
		readBody(resp)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}

	cookie := s.login(ctx)
	resp := s.get(ctx, "/admin", cookie)
	body := readBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	first := strings.Index(body, emails[0])
	last := strings.Index(body, emails[2])
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, last)
	assert.Less(t, last, first)
}
