// Package invest wraps the project and investment endpoints. Authenticated
// calls draw their bearer token from the session manager, and any expired
// credential reported by the backend invalidates the whole session before
// the failure is surfaced.
package invest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/exonvc/invest/internal/api"
	"github.com/exonvc/invest/internal/session"
)

const (
	projectsPath        = "/api/projects"
	investmentsPath     = "/api/investments"
	userInvestmentsPath = "/api/user/investments"
)

// ErrNotLoggedIn is returned from authenticated calls without a session.
var ErrNotLoggedIn = errors.New("invest: not logged in")

// Client calls the project and investment endpoints.
type Client struct {
	api  *api.Client
	sess *session.Manager
}

// NewClient builds a Client. sess may be nil for public-only use.
func NewClient(transport *api.Client, sess *session.Manager) *Client {
	return &Client{api: transport, sess: sess}
}

// Projects lists active projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	if err := c.api.Do(ctx, http.MethodGet, projectsPath, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// Project fetches a single project by id.
func (c *Client) Project(ctx context.Context, id int64) (Project, error) {
	var project Project
	if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", projectsPath, id), "", nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// CreateInvestment stakes amount into a project on behalf of the current
// user.
func (c *Client) CreateInvestment(ctx context.Context, projectID int64, amount float64) (Investment, error) {
	token, ok := c.sessionToken()
	if !ok {
		return Investment{}, ErrNotLoggedIn
	}
	body := map[string]any{"project_id": projectID, "amount": amount}
	var investment Investment
	if err := c.api.Do(ctx, http.MethodPost, investmentsPath, token, body, &investment); err != nil {
		return Investment{}, c.authFailure(ctx, err)
	}
	return investment, nil
}

// UserInvestments lists the current user's investments.
func (c *Client) UserInvestments(ctx context.Context) ([]Investment, error) {
	token, ok := c.sessionToken()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	var out struct {
		Investments []Investment `json:"investments"`
	}
	if err := c.api.Do(ctx, http.MethodGet, userInvestmentsPath, token, nil, &out); err != nil {
		return nil, c.authFailure(ctx, err)
	}
	return out.Investments, nil
}

func (c *Client) sessionToken() (string, bool) {
	if c.sess == nil {
		return "", false
	}
	return c.sess.BearerToken()
}

func (c *Client) authFailure(ctx context.Context, err error) error {
	if api.IsUnauthorized(err) {
		c.sess.Invalidate(ctx)
	}
	return err
}
