package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	"github.com/inkwell-labs/inkwell/libs/runtime"
)

type upstreams struct {
	posts         *url.URL
	users         *url.URL
	notifications *url.URL
}

func parseUpstreams(cfg Config) (upstreams, error) {
	var (
		up  upstreams
		err error
	)
	if up.posts, err = parseURL("POSTS_URL", cfg.PostsURL); err != nil {
		return up, err
	}
	if up.users, err = parseURL("USERS_URL", cfg.UsersURL); err != nil {
		return up, err
	}
	if up.notifications, err = parseURL("NOTIFICATIONS_URL", cfg.NotificationsURL); err != nil {
		return up, err
	}
	return up, nil
}

func parseURL(key, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperr.InvalidConfiguration("gateway", fmt.Errorf("%s must be an absolute URL (got %q)", key, raw))
	}
	return u, nil
}

func registerRoutes(mux *http.ServeMux, up upstreams, transport http.RoundTripper, requestTimeout time.Duration, logger *slog.Logger) {
	posts := newProxy(up.posts, transport, logger)
	users := newProxy(up.users, transport, logger)
	notifications := newProxy(up.notifications, transport, logger)
	timeout := httpx.WithTimeout(requestTimeout)

	registerProxy(mux, "/api/v1/posts", timeout(posts))
	registerProxy(mux, "/api/v1/users", timeout(users))
	mux.Handle("/api/v1/users/{user_id}/notifications", timeout(notifications))
	registerProxy(mux, "/api/v1/notifications", timeout(notifications))
	// Long-lived streams: no timeout.
	mux.Handle("/ws/notifications/", notifications)
}

func newProxy(target *url.URL, transport http.RoundTripper, logger *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed", "err", err, "upstream", target.Host, "path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, apperr.Messaging("gateway.proxy", err))
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

// upstreamChecks reports each backend as ready when its /healthz answers 200.
func upstreamChecks(up upstreams) []runtime.ReadyCheck {
	client := &http.Client{Timeout: 2 * time.Second}
	check := func(u *url.URL) func(context.Context) error {
		healthz := u.JoinPath("/healthz").String()
		return func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthz, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthz returned %d", resp.StatusCode)
			}
			return nil
		}
	}
	return []runtime.ReadyCheck{
		{Name: "posts", Check: check(up.posts)},
		{Name: "users", Check: check(up.users)},
		{Name: "notifications", Check: check(up.notifications)},
	}
}
