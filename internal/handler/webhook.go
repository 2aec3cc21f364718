package handler

import (
	"context"
	"net/http"

	gh "github.com/google/go-github/v68/github"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"repo-freeze-service/internal/domain"
	"repo-freeze-service/internal/usecase"
)

// commandExecutor runs one comment through the command pipeline.
type commandExecutor interface {
	Execute(ctx context.Context, req usecase.CommandRequest) (*usecase.Result, error)
}

// prReconciler refreshes the merge signal of a single pull request.
type prReconciler interface {
	ReconcileSinglePR(ctx context.Context, installationID int64, repo domain.Repository, pr domain.PullRequest) error
}

// commenter posts result messages back to the conversation.
type commenter interface {
	CreateComment(ctx context.Context, repo domain.Repository, issueNumber int, body string) error
}

// WebhookHandler receives GitHub webhook deliveries. Comment events feed the
// command pipeline; pull request events trigger a single-PR reconciliation
// so new and updated PRs pick up the current freeze state immediately.
type WebhookHandler struct {
	executor   commandExecutor
	reconciler prReconciler
	comments   commenter
	secret     []byte
	logger     *logrus.Logger
}

// NewWebhookHandler creates a WebhookHandler. The secret must match the
// webhook secret configured on the GitHub app; deliveries with a bad
// signature are rejected.
func NewWebhookHandler(executor commandExecutor, reconciler prReconciler, comments commenter, secret string, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		executor:   executor,
		reconciler: reconciler,
		comments:   comments,
		secret:     []byte(secret),
		logger:     logger,
	}
}

// Handle validates and dispatches one webhook delivery. Unhandled event
// types are acknowledged with 200 so GitHub does not retry them.
func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, err := gh.ValidatePayload(c.Request(), h.secret)
	if err != nil {
		h.logRequest(c, "webhook").WithError(err).Warn("Rejected webhook delivery")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	event, err := gh.ParseWebHook(gh.WebHookType(c.Request()), payload)
	if err != nil {
		h.logRequest(c, "webhook").WithError(err).Warn("Unparseable webhook payload")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	switch e := event.(type) {
	case *gh.IssueCommentEvent:
		return h.handleComment(c, e)
	case *gh.PullRequestEvent:
		return h.handlePullRequest(c, e)
	default:
		return c.NoContent(http.StatusOK)
	}
}

func (h *WebhookHandler) handleComment(c echo.Context, event *gh.IssueCommentEvent) error {
	if event.GetAction() != "created" {
		return c.NoContent(http.StatusOK)
	}

	repo, err := domain.ParseRepository(event.GetRepo().GetFullName())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	req := usecase.CommandRequest{
		InstallationID: event.GetInstallation().GetID(),
		Repository:     repo,
		Actor:          event.GetComment().GetUser().GetLogin(),
		Body:           event.GetComment().GetBody(),
	}
	issueNumber := event.GetIssue().GetNumber()
	if event.GetIssue().IsPullRequest() {
		req.CurrentPR = &issueNumber
	}

	result, err := h.executor.Execute(c.Request().Context(), req)
	if err != nil {
		h.logRequest(c, "comment").WithError(err).Error("Command execution failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "execution failed"})
	}
	if result == nil {
		// Not a command; nothing to answer.
		return c.NoContent(http.StatusOK)
	}

	if err := h.comments.CreateComment(c.Request().Context(), repo, issueNumber, result.Message); err != nil {
		h.logRequest(c, "comment").WithError(err).Warn("Failed to post result comment")
	}
	return c.JSON(http.StatusOK, map[string]string{"outcome": string(result.Outcome)})
}

func (h *WebhookHandler) handlePullRequest(c echo.Context, event *gh.PullRequestEvent) error {
	switch event.GetAction() {
	case "opened", "reopened", "synchronize":
	default:
		return c.NoContent(http.StatusOK)
	}

	repo, err := domain.ParseRepository(event.GetRepo().GetFullName())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	pr := domain.PullRequest{
		Number:       event.GetPullRequest().GetNumber(),
		TargetBranch: event.GetPullRequest().GetBase().GetRef(),
		HeadSHA:      event.GetPullRequest().GetHead().GetSHA(),
	}

	if err := h.reconciler.ReconcileSinglePR(c.Request().Context(), event.GetInstallation().GetID(), repo, pr); err != nil {
		h.logRequest(c, "pull_request").WithError(err).WithField("pr", pr.Number).Warn("Failed to reconcile pull request")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "reconciliation failed"})
	}
	return c.NoContent(http.StatusOK)
}

func (h *WebhookHandler) logRequest(c echo.Context, operation string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"method":     c.Request().Method,
		"path":       c.Request().URL.Path,
		"ip":         c.RealIP(),
		"user_agent": c.Request().UserAgent(),
	})
}
