// Package github adapts the GitHub REST API to the platform contract used by
// the freeze engine.
package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v68/github"
	"github.com/sirupsen/logrus"

	"repo-freeze-service/internal/domain"
)

// mergeCheckName is the check run every open PR carries while the engine
// watches its repository. A failing check blocks the merge button.
const mergeCheckName = "freeze-gate"

// Client talks to the GitHub REST API on behalf of the installation.
type Client struct {
	api    *gh.Client
	logger *logrus.Logger
}

// NewClient creates a Client authenticated with the given token. A non-empty
// baseURL points the client at a GitHub Enterprise instance.
func NewClient(token, baseURL string, logger *logrus.Logger) (*Client, error) {
	api := gh.NewClient(nil).WithAuthToken(token)
	if baseURL != "" {
		var err error
		api, err = api.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise base URL: %w", err)
		}
	}
	return &Client{api: api, logger: logger}, nil
}

// ApplyProtection locks the branch so pushes and merges are rejected at the
// platform level. A nil branch locks the repository's default branch. Only
// the lock flag of the protection rule is set; the stored freeze record
// remains the source of truth when the API call fails.
func (c *Client) ApplyProtection(ctx context.Context, repo domain.Repository, branch *string) error {
	return c.setBranchLock(ctx, repo, branch, true)
}

// RemoveProtection releases the branch lock set by ApplyProtection.
func (c *Client) RemoveProtection(ctx context.Context, repo domain.Repository, branch *string) error {
	return c.setBranchLock(ctx, repo, branch, false)
}

func (c *Client) setBranchLock(ctx context.Context, repo domain.Repository, branch *string, lock bool) error {
	target, err := c.resolveBranch(ctx, repo, branch)
	if err != nil {
		return err
	}

	_, _, err = c.api.Repositories.UpdateBranchProtection(ctx, repo.Owner, repo.Name, target, &gh.ProtectionRequest{
		LockBranch: gh.Ptr(lock),
	})
	if err != nil {
		return fmt.Errorf("failed to set branch lock on %s@%s: %w", repo.FullName(), target, err)
	}

	c.logger.WithFields(logrus.Fields{
		"repository": repo.FullName(),
		"branch":     target,
		"locked":     lock,
	}).Info("Branch lock updated")
	return nil
}

func (c *Client) resolveBranch(ctx context.Context, repo domain.Repository, branch *string) (string, error) {
	if branch != nil {
		return *branch, nil
	}
	repository, _, err := c.api.Repositories.Get(ctx, repo.Owner, repo.Name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve default branch of %s: %w", repo.FullName(), err)
	}
	return repository.GetDefaultBranch(), nil
}

// ListOpenPullRequests enumerates every open PR of the repository, following
// pagination.
func (c *Client) ListOpenPullRequests(ctx context.Context, repo domain.Repository) ([]domain.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var prs []domain.PullRequest
	for {
		page, resp, err := c.api.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list open PRs of %s: %w", repo.FullName(), err)
		}
		for _, pr := range page {
			prs = append(prs, domain.PullRequest{
				Number:       pr.GetNumber(),
				TargetBranch: pr.GetBase().GetRef(),
				HeadSHA:      pr.GetHead().GetSHA(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return prs, nil
}

// PushMergeSignal publishes the freeze-gate check run on the PR's head
// commit. A blocking signal fails the check, a clearing signal passes it.
// Re-pushing the same signal just rewrites the check run with identical
// content, so the operation is idempotent from the PR's point of view.
func (c *Client) PushMergeSignal(ctx context.Context, repo domain.Repository, pr domain.PullRequest, block bool, freeze *domain.FreezeRecord) error {
	conclusion := "success"
	title := "Merges allowed"
	summary := "No freeze covers this pull request."
	if block {
		conclusion = "failure"
		title = "Merges frozen"
		summary = freezeSummary(freeze)
	}

	_, _, err := c.api.Checks.CreateCheckRun(ctx, repo.Owner, repo.Name, gh.CreateCheckRunOptions{
		Name:       mergeCheckName,
		HeadSHA:    pr.HeadSHA,
		Status:     gh.Ptr("completed"),
		Conclusion: gh.Ptr(conclusion),
		Output: &gh.CheckRunOutput{
			Title:   gh.Ptr(title),
			Summary: gh.Ptr(summary),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to push merge signal to %s#%d: %w", repo.FullName(), pr.Number, err)
	}
	return nil
}

func freezeSummary(freeze *domain.FreezeRecord) string {
	if freeze == nil {
		return "The repository is frozen."
	}

	scope := "the repository"
	if freeze.Branch != nil {
		scope = fmt.Sprintf("branch `%s`", *freeze.Branch)
	}
	summary := fmt.Sprintf("A freeze on %s blocks this merge. Started %s by @%s.",
		scope, freeze.StartedAt.Format("2006-01-02 15:04 UTC"), freeze.InitiatedBy)
	if freeze.ExpiresAt != nil {
		summary += fmt.Sprintf(" Expires %s.", freeze.ExpiresAt.Format("2006-01-02 15:04 UTC"))
	}
	if freeze.Reason != nil {
		summary += fmt.Sprintf(" Reason: %s", *freeze.Reason)
	}
	return summary
}

// ListInstallationRepositories returns every repository the installation
// token can reach.
func (c *Client) ListInstallationRepositories(ctx context.Context, installationID int64) ([]domain.Repository, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var repos []domain.Repository
	for {
		page, resp, err := c.api.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of installation %d: %w", installationID, err)
		}
		for _, repository := range page.Repositories {
			repos = append(repos, domain.Repository{
				Owner: repository.GetOwner().GetLogin(),
				Name:  repository.GetName(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// CreateComment posts a Markdown message to the issue or PR conversation.
func (c *Client) CreateComment(ctx context.Context, repo domain.Repository, issueNumber int, body string) error {
	_, _, err := c.api.Issues.CreateComment(ctx, repo.Owner, repo.Name, issueNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", repo.FullName(), issueNumber, err)
	}
	return nil
}
