package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/crosstune/crosstune/internal/shared"
	"golang.org/x/oauth2"
)

func newTestOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
}

func buildGet(url string) RequestFactory {
	return func(accessToken string) (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	}
}

func TestClientDo(t *testing.T) {
	t.Run("passes bearer token through", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := New(srv.Client(), 100, nil, nil)
		resp, refreshed, err := client.Do(context.Background(), buildGet(srv.URL), Tokens{Access: "tok-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if gotAuth != "Bearer tok-1" {
			t.Errorf("expected bearer header, got %q", gotAuth)
		}
		if refreshed != nil {
			t.Error("expected no token refresh")
		}
	})

	t.Run("retries on 429 honoring Retry-After", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := New(srv.Client(), 100, nil, nil)
		resp, _, err := client.Do(context.Background(), buildGet(srv.URL), Tokens{Access: "tok"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if got := calls.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("429 wait respects context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		client := New(srv.Client(), 100, nil, nil)

		done := make(chan error, 1)
		go func() {
			_, _, err := client.Do(ctx, buildGet(srv.URL), Tokens{Access: "tok"})
			done <- err
		}()
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("refreshes once on 401 and returns new tokens", func(t *testing.T) {
		var apiCalls atomic.Int32
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()

		auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"fresh","refresh_token":"rot","token_type":"Bearer","expires_in":3600}`)
		}))
		defer auth.Close()

		client := New(api.Client(), 100, newTestOAuthConfig(auth.URL), nil)
		resp, refreshed, err := client.Do(context.Background(), buildGet(api.URL), Tokens{Access: "stale", Refresh: "r1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if apiCalls.Load() != 2 {
			t.Errorf("expected 2 api calls, got %d", apiCalls.Load())
		}
		if refreshed == nil {
			t.Fatal("expected refreshed tokens returned")
		}
		if refreshed.Access != "fresh" || refreshed.Refresh != "rot" {
			t.Errorf("unexpected refreshed tokens: %+v", refreshed)
		}
	})

	t.Run("carries old refresh token when platform does not rotate", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()

		auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
		}))
		defer auth.Close()

		client := New(api.Client(), 100, newTestOAuthConfig(auth.URL), nil)
		resp, refreshed, err := client.Do(context.Background(), buildGet(api.URL), Tokens{Access: "stale", Refresh: "keep-me"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if refreshed == nil || refreshed.Refresh != "keep-me" {
			t.Errorf("expected original refresh token carried forward, got %+v", refreshed)
		}
	})

	t.Run("second 401 after refresh fails with auth expired", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
		}))
		defer auth.Close()

		client := New(api.Client(), 100, newTestOAuthConfig(auth.URL), nil)
		_, _, err := client.Do(context.Background(), buildGet(api.URL), Tokens{Access: "stale", Refresh: "r1"})

		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
	})

	t.Run("401 without refresh token fails immediately", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		client := New(api.Client(), 100, newTestOAuthConfig("http://unused"), nil)
		_, _, err := client.Do(context.Background(), buildGet(api.URL), Tokens{Access: "stale"})

		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
	})
}

func TestRetryAfter(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"explicit seconds", "5", "5s"},
		{"zero", "0", "0s"},
		{"absent defaults to one second", "", "1s"},
		{"malformed defaults to one second", "soon", "1s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tc.header != "" {
				resp.Header.Set("Retry-After", tc.header)
			}
			if got := RetryAfter(resp); got.String() != tc.want {
				t.Errorf("RetryAfter = %v, want %v", got, tc.want)
			}
		})
	}
}
