package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Linked</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
	<h1>Account linked</h1>
	<p>You can close this tab and return to the terminal.</p>
</body>
</html>
`

// CallbackHandler receives the OAuth2 authorization-code redirect, checks
// the state parameter, and exchanges the code. The first callback wins;
// replays get a 400.
type CallbackHandler struct {
	config *oauth2.Config
	state  string

	mu     sync.Mutex
	done   bool
	result chan callbackResult
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

// NewCallbackHandler creates the handler. state must be random per flow.
func NewCallbackHandler(config *oauth2.Config, state string) *CallbackHandler {
	return &CallbackHandler{
		config: config,
		state:  state,
		result: make(chan callbackResult, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		http.Error(w, "callback already processed", http.StatusBadRequest)
		return
	}
	h.done = true
	h.mu.Unlock()

	query := req.URL.Query()
	if query.Get("state") != h.state {
		h.finish(nil, fmt.Errorf("state mismatch in oauth callback"))
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization denied: %s %s", query.Get("error"), query.Get("error_description"))
		h.finish(nil, err)
		http.Error(w, "authorization denied", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(req.Context(), code)
	if err != nil {
		h.finish(nil, fmt.Errorf("token exchange failed: %w", err))
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	h.finish(token, nil)
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, callbackPage)
}

func (h *CallbackHandler) finish(token *oauth2.Token, err error) {
	h.result <- callbackResult{token: token, err: err}
	close(h.result)
}

// Wait blocks until the callback fires, the timeout lapses, or the context
// is canceled.
func (h *CallbackHandler) Wait(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	select {
	case res := <-h.result:
		return res.token, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out waiting for oauth callback")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunCallbackServer starts a localhost server for one OAuth flow, waits for
// the callback, and shuts the server down.
func RunCallbackServer(ctx context.Context, addr string, handler *CallbackHandler, timeout time.Duration) (*oauth2.Token, error) {
	router := NewRouter()
	router.Handler(handler)

	srv := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("callback server failed: %w", err)
	default:
	}

	return handler.Wait(ctx, timeout)
}
