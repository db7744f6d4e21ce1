package api_test

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-chi/chi/v5"

	"github.com/nkomarek/atelier/api"
	"github.com/nkomarek/atelier/blob"
	"github.com/nkomarek/atelier/storage/memory"
)

// With no trusted proxies the forwarded header must not change the
// rate-limit identity, so failures with rotating X-Forwarded-For values
// still trip the limiter.
func TestForwardedHeaderIgnoredWithoutTrustedProxy(t *testing.T) {
	env := setupServer(t)
	enroll(t, env)

	spoofed := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}
	var last *http.Response
	for _, ip := range spoofed {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
			env.srv.URL+"/api/v1/auth", jsonBody(t, api.AuthRequest{Action: "verify", Code: "000000"}))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", ip)
		last, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		last.Body.Close()
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode,
		"spoofed headers must not evade the rate limit")
}

func TestTrustedProxyHonorsForwardedFor(t *testing.T) {
	store := memory.New()
	a := api.New(store, blob.NewMemoryStore(),
		api.WithTrustedProxies([]netip.Prefix{netip.MustParsePrefix("127.0.0.0/8")}))
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	// With the loopback peer trusted, each distinct forwarded identity gets
	// its own failure budget: six attempts from six "clients" are all
	// answered without a 429.
	doVerify := func(forwardedFor string) int {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
			srv.URL+"/api/v1/auth", jsonBody(t, api.AuthRequest{Action: "verify", Code: "000000"}))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	// Configure a secret directly so verify reaches the code check.
	require.NoError(t, store.PutSecureValue("totp_secret", "JBSWY3DPEHPK3PXP"))

	for i, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.5", "203.0.113.6"} {
		status := doVerify(ip)
		assert.Equal(t, http.StatusOK, status, "attempt %d", i)
	}
}
