package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	directoryModel "socialnet/internal/model/directory"
)

// Client resolves the candidate users eligible for starting a new direct
// conversation. It talks to the action endpoint over plain request/response
// HTTP, independent of the chat transport.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a directory client for the given API base URL,
// authenticating with the provided bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Resolve returns the deduplicated union of the local user's followers and
// following, keyed by user id. Order is first-seen: followers, then
// following.
func (c *Client) Resolve(ctx context.Context) ([]directoryModel.User, error) {
	var followers, following []directoryModel.User

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var resp struct {
			Followers []directoryModel.User `json:"followers"`
		}
		if err := c.post(gctx, "get_followers", &resp); err != nil {
			return err
		}
		followers = resp.Followers
		return nil
	})
	g.Go(func() error {
		var resp struct {
			Following []directoryModel.User `json:"following"`
		}
		if err := c.post(gctx, "get_following", &resp); err != nil {
			return err
		}
		following = resp.Following
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(followers)+len(following))
	users := make([]directoryModel.User, 0, len(followers)+len(following))
	for _, u := range followers {
		if !seen[u.ID] {
			seen[u.ID] = true
			users = append(users, u)
		}
	}
	for _, u := range following {
		if !seen[u.ID] {
			seen[u.ID] = true
			users = append(users, u)
		}
	}
	return users, nil
}

func (c *Client) post(ctx context.Context, action string, out any) error {
	body, err := json.Marshal(map[string]string{"action": action})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
