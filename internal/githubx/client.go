package githubx

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// PullRequest is the subset of PR metadata the reviewer needs.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	Author string
	Base   string
	Head   string
}

// Client wraps the GitHub API for repository reads and PR reviews.
type Client struct {
	gh *github.Client
}

// New builds a client. An empty token yields unauthenticated access, which
// works for public repos at a much lower rate limit.
func New(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: github.NewClient(oauth2.NewClient(ctx, ts))}
}

// SplitRepo parses "owner/name" into its parts.
func SplitRepo(full string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(full), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", full)
	}
	return parts[0], parts[1], nil
}

// GetPullRequest fetches PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return PullRequest{}, fmt.Errorf("get pr %s/%s#%d: %w", owner, repo, number, err)
	}
	out := PullRequest{
		Number: number,
		Title:  pr.GetTitle(),
		Body:   pr.GetBody(),
		Author: pr.GetUser().GetLogin(),
		Base:   pr.GetBase().GetRef(),
		Head:   pr.GetHead().GetRef(),
	}
	return out, nil
}

// ListPullRequestFiles returns every changed file with its unified diff patch.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var out []ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list pr files %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, f := range files {
			out = append(out, ChangedFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// GetFileContent fetches a file's decoded content at a ref ("" = default branch).
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	content, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("get %s/%s:%s: %w", owner, repo, path, err)
	}
	if content == nil {
		return "", fmt.Errorf("%s/%s:%s is a directory", owner, repo, path)
	}
	body, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode %s/%s:%s: %w", owner, repo, path, err)
	}
	return body, nil
}

// ListTree returns all file paths in the repo at a ref, recursively.
func (c *Client) ListTree(ctx context.Context, owner, repo, ref string) ([]string, error) {
	if ref == "" {
		r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, fmt.Errorf("get repo %s/%s: %w", owner, repo, err)
		}
		ref = r.GetDefaultBranch()
	}
	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s/%s@%s: %w", owner, repo, ref, err)
	}
	var paths []string
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			paths = append(paths, e.GetPath())
		}
	}
	return paths, nil
}

// CommentOnPullRequest posts a plain issue comment on a PR.
func (c *Client) CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}
