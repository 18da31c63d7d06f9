package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
)

// ErrNotGitHub marks URLs this collaborator cannot describe; validate then
// degrades to the clone-feasibility check only.
var ErrNotGitHub = fmt.Errorf("not a github repository url")

// Client fetches repository metadata from the GitHub REST API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.github.com",
		token:   token,
	}
}

func (c *Client) RepoMetadata(ctx context.Context, rawURL string) (*domain.RepoMetadata, error) {
	owner, repo, err := splitRepoPath(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var body struct {
		FullName      string `json:"full_name"`
		Description   string `json:"description"`
		DefaultBranch string `json:"default_branch"`
		Stars         int    `json:"stargazers_count"`
		Forks         int    `json:"forks_count"`
		Language      string `json:"language"`
		Size          int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	return &domain.RepoMetadata{
		FullName:      body.FullName,
		Description:   body.Description,
		DefaultBranch: body.DefaultBranch,
		Stars:         body.Stars,
		Forks:         body.Forks,
		Language:      body.Language,
		SizeKB:        body.Size,
	}, nil
}

func splitRepoPath(rawURL string) (owner, repo string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if !strings.EqualFold(u.Hostname(), "github.com") {
		return "", "", ErrNotGitHub
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrNotGitHub
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
