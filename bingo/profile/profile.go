// Package profile looks up public Habbo player profiles for avatar display.
// Lookups are best-effort: callers get ErrNotFound or a wrapped network error
// and are expected to fall back to a name-based avatar.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gosuda/portal-bingo/bingo/store"
)

var ErrNotFound = errors.New("profile: user not found")

const defaultTimeout = 5 * time.Second

// Badge is one of the badges a user chose to display.
type Badge struct {
	BadgeIndex  int    `json:"badgeIndex"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// User is the subset of the public profile the bingo client shows.
type User struct {
	UniqueID           string  `json:"uniqueId"`
	Name               string  `json:"name"`
	Motto              string  `json:"motto"`
	FigureString       string  `json:"figureString,omitempty"`
	ProfileVisible     bool    `json:"profileVisible"`
	HabboClubMember    bool    `json:"habboClubMember"`
	BuildersClubMember bool    `json:"buildersClubMember"`
	LastAccessTime     string  `json:"lastAccessTime"`
	CreationTime       string  `json:"creationTime"`
	SelectedBadges     []Badge `json:"selectedBadges"`
}

// Client queries the per-server public user APIs.
type Client struct {
	http  *http.Client
	bases map[store.AvatarServer]string
}

type Option func(*Client)

// WithHTTPClient replaces the default client (5s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBaseURL points a server at a different users endpoint.
func WithBaseURL(server store.AvatarServer, base string) Option {
	return func(cl *Client) { cl.bases[server] = base }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: defaultTimeout},
		bases: map[store.AvatarServer]string{
			store.ServerOrigins: "https://origins.habbo.es/api/public/users",
			store.ServerES:      "https://www.habbo.es/api/public/users",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the named user from server.
func (c *Client) Lookup(ctx context.Context, server store.AvatarServer, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	base, ok := c.bases[server]
	if !ok {
		base = c.bases[store.ServerOrigins]
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s on %s: %w", name, server, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("lookup %s on %s: HTTP %d", name, server, resp.StatusCode)
	}
	var u User
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &u, nil
}
