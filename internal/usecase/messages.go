package usecase

import (
	"fmt"
	"strings"
	"time"

	"repo-freeze-service/internal/domain"
)

// User-facing result messages. All messages use Markdown and are posted back
// to the originating conversation by the caller.

func freezeSuccessMessage(scope domain.Scope, duration, reason string) string {
	target := fmt.Sprintf("Repository `%s`", scope.Repository)
	if scope.Branch != "" {
		target = fmt.Sprintf("Branch `%s` of `%s`", scope.Branch, scope.Repository)
	}
	return fmt.Sprintf(
		"## ❄️ Repository Frozen\n\n"+
			"🔒 **%s has been frozen**%s%s\n\n"+
			"> 🚨 **Important**: Merges into the frozen scope are blocked until the freeze is lifted.\n\n"+
			"*Use `/unfreeze` to lift the freeze when ready.*",
		target, duration, reason,
	)
}

func scheduleSuccessMessage(scope domain.Scope, from time.Time, until, reason string) string {
	return fmt.Sprintf(
		"## ⏰ Freeze Scheduled\n\n"+
			"🗓 **A freeze for `%s` is scheduled to start at %s**%s%s\n\n"+
			"*The freeze will be applied automatically when its start time passes.*",
		scope.Repository, from.Format("2006-01-02 15:04:05 UTC"), until, reason,
	)
}

func unfreezeSuccessMessage(scope domain.Scope) string {
	target := fmt.Sprintf("Repository `%s`", scope.Repository)
	if scope.Branch != "" {
		target = fmt.Sprintf("Branch `%s` of `%s`", scope.Branch, scope.Repository)
	}
	return fmt.Sprintf(
		"## 🌞 Repository Unfrozen\n\n"+
			"✅ **%s has been unfrozen**\n\n"+
			"> 🎉 **All systems go**: merges are allowed again.\n\n"+
			"*The freeze has been successfully lifted.*",
		target,
	)
}

func freezeAllSuccessMessage(count int) string {
	return fmt.Sprintf(
		"## ❄️ All Repositories Frozen\n\n"+
			"🔒 **Successfully froze %d repositories**\n\n"+
			"> 🚨 **Important**: merges are blocked for all frozen repositories until unfrozen.\n\n"+
			"*Use `/unfreeze-all` to lift all freezes when ready.*",
		count,
	)
}

func unfreezeAllSuccessMessage(count int) string {
	return fmt.Sprintf(
		"## 🌞 All Repositories Unfrozen\n\n"+
			"✅ **Successfully unfroze %d repositories**\n\n"+
			"> 🎉 **All systems go**: merges are allowed for all repositories.",
		count,
	)
}

func partialSuccessMessage(operation string, succeeded, failed int, errs []string) string {
	shown := errs
	suffix := ""
	if len(shown) > 5 {
		suffix = fmt.Sprintf("\n- ... and %d more", len(shown)-5)
		shown = shown[:5]
	}
	return fmt.Sprintf(
		"## ⚠️ Partial %s Success\n\n"+
			"✅ **%d repositories succeeded**\n"+
			"❌ **%d repositories failed**\n\n"+
			"**Errors encountered:**\n- %s%s",
		operation, succeeded, failed, strings.Join(shown, "\n- "), suffix,
	)
}

func unlockSuccessMessage(repository string, prNumber int) string {
	return fmt.Sprintf(
		"## 🔓 Pull Request Unlocked\n\n"+
			"✅ **PR #%d of `%s` is exempt from the current freeze**\n\n"+
			"> The exemption lasts for this freeze only; a new freeze locks the PR again.",
		prNumber, repository,
	)
}

func permissionDeniedMessage(actor, reason string) string {
	return fmt.Sprintf(
		"## ❌ Permission Denied\n\n"+
			"🚫 **Access denied for user `%s`**\n\n"+
			"**Reason**: %s\n\n"+
			"*Contact your repository administrator to request access.*",
		actor, reason,
	)
}

func commandErrorMessage(title, reason string) string {
	return fmt.Sprintf(
		"## ❌ %s\n\n"+
			"🚫 **The command could not be completed**\n\n"+
			"```\n%s\n```",
		title, reason,
	)
}

func statusTableMessage(entries []StatusEntry) string {
	var b strings.Builder
	b.WriteString("## 📊 Repository Freeze Status\n\n")
	b.WriteString("| Repository | Scope | Status | Start | End | Reason |\n")
	b.WriteString("|------------|-------|--------|-------|-----|--------|\n")

	for _, entry := range entries {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			entry.Repository,
			orDash(entry.Branch, "all branches"),
			entry.State,
			orDash(entry.Start, "-"),
			orDash(entry.End, "-"),
			orDash(entry.Reason, "-"),
		))
	}

	b.WriteString("\n*Use `/freeze` or `/unfreeze` to manage individual repositories.*")
	return b.String()
}

func helpMessage() string {
	return "## 🧊 Freeze Commands\n\n" +
		"- `/freeze [--repo owner/repo,...] [--branch name] [--duration 2h|PT2H] [--reason \"text\"]` - freeze the current or listed repositories\n" +
		"- `/freeze-all [--repo ...]` - freeze every repository of the installation\n" +
		"- `/unfreeze [--branch name] [--reason \"text\"]` - lift the active freeze\n" +
		"- `/unfreeze-all` - lift freezes across the installation\n" +
		"- `/status [--repos owner/repo,...]` - show freeze status\n" +
		"- `/schedule-freeze --from RFC3339 [--to RFC3339|--duration 2h] [--branch name]` - schedule a future freeze\n" +
		"- `/unlock-pr [--pr-number N]` - exempt one PR from the current freeze\n" +
		"- `/help` - show this message"
}

// formatDurationDisplay renders a freeze duration for messages.
func formatDurationDisplay(d *time.Duration) string {
	if d == nil {
		return ""
	}
	totalMinutes := int(*d / time.Minute)
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	switch {
	case hours > 0:
		return fmt.Sprintf(" for **%dh %dm**", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf(" for **%dm**", minutes)
	default:
		return " for a **short duration**"
	}
}

// formatReasonDisplay renders an optional freeze reason for messages.
func formatReasonDisplay(reason *string) string {
	if reason == nil || strings.TrimSpace(*reason) == "" {
		return ""
	}
	return fmt.Sprintf("\n\n**Reason**: _%s_", strings.TrimSpace(*reason))
}

func orDash(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
