package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"repo-freeze-service/internal/domain"
)

func newTestReconciler(freezes *mockFreezeStore, unlocks *mockUnlockStore, platform *mockPlatform) *Reconciler {
	reconciler := NewReconciler(freezes, unlocks, platform, testLogger())
	reconciler.now = func() time.Time { return testNow }
	return reconciler
}

func TestReconcileRepository_BlocksCoveredPRs(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freeze := activeRecord("acme/api", strPtr("main"), testNow.Add(-time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{freeze}, nil)

	toMain := domain.PullRequest{Number: 1, TargetBranch: "main"}
	toDev := domain.PullRequest{Number: 2, TargetBranch: "dev"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).
		Return([]domain.PullRequest{toMain, toDev}, nil)

	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", 1).Return(nil, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, toMain, true, freeze).Return(nil)
	platform.On("PushMergeSignal", mock.Anything, repo, toDev, false, (*domain.FreezeRecord)(nil)).Return(nil)

	report, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)

	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalPRs)
	assert.Equal(t, 1, report.Blocked)
	assert.Equal(t, 1, report.Cleared)
	assert.Empty(t, report.Failures)
	platform.AssertExpectations(t)
}

func TestReconcileRepository_ClearsWhenNoFreeze(t *testing.T) {
	freezes := new(mockFreezeStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, new(mockUnlockStore), platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).Return(nil, nil)
	pr := domain.PullRequest{Number: 5, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).Return([]domain.PullRequest{pr}, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, pr, false, (*domain.FreezeRecord)(nil)).Return(nil)

	report, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Cleared)
	assert.Equal(t, 0, report.Blocked)
}

func TestReconcileRepository_UnlockExemptsPR(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freeze := activeRecord("acme/api", nil, testNow.Add(-2*time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{freeze}, nil)

	pr := domain.PullRequest{Number: 7, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).Return([]domain.PullRequest{pr}, nil)

	// Unlock issued after the freeze started: the PR is exempt.
	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", 7).
		Return(&domain.UnlockedPr{
			Repository:     "acme/api",
			InstallationID: testInstallation,
			PRNumber:       7,
			UnlockedAt:     testNow.Add(-time.Hour),
		}, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, pr, false, (*domain.FreezeRecord)(nil)).Return(nil)

	report, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Cleared)
	assert.Equal(t, 0, report.Blocked)
}

func TestReconcileRepository_NewFreezeInvalidatesOldUnlock(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	// The unlock was issued under the first freeze; a later freeze on the
	// branch scope supersedes it.
	older := activeRecord("acme/api", nil, testNow.Add(-3*time.Hour), nil)
	newer := activeRecord("acme/api", strPtr("main"), testNow.Add(-time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{older, newer}, nil)

	pr := domain.PullRequest{Number: 7, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).Return([]domain.PullRequest{pr}, nil)

	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", 7).
		Return(&domain.UnlockedPr{
			Repository:     "acme/api",
			InstallationID: testInstallation,
			PRNumber:       7,
			UnlockedAt:     testNow.Add(-2 * time.Hour),
		}, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, pr, true, newer).Return(nil)

	report, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Blocked)
	platform.AssertExpectations(t)
}

func TestReconcileRepository_PRFailureDoesNotStopOthers(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freeze := activeRecord("acme/api", nil, testNow.Add(-time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{freeze}, nil)

	failing := domain.PullRequest{Number: 1, TargetBranch: "main"}
	healthy := domain.PullRequest{Number: 2, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).
		Return([]domain.PullRequest{failing, healthy}, nil)

	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", mock.Anything).Return(nil, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, failing, true, freeze).
		Return(errors.New("api rate limited"))
	platform.On("PushMergeSignal", mock.Anything, repo, healthy, true, freeze).Return(nil)

	report, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Blocked)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Number)
	assert.Contains(t, report.Failures[0].Error, "rate limited")
}

func TestReconcileRepository_IsIdempotent(t *testing.T) {
	// Two passes over unchanged state push the same signals; nothing else.
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freeze := activeRecord("acme/api", nil, testNow.Add(-time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{freeze}, nil)

	pr := domain.PullRequest{Number: 3, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, repo).Return([]domain.PullRequest{pr}, nil)
	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", 3).Return(nil, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, pr, true, freeze).Return(nil).Times(2)

	first, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)
	require.NoError(t, err)
	second, err := reconciler.ReconcileRepository(context.Background(), testInstallation, repo)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	platform.AssertExpectations(t)
}

func TestReconcileSinglePR_PushesDesiredSignal(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	repo := domain.Repository{Owner: "acme", Name: "api"}

	freeze := activeRecord("acme/api", strPtr("main"), testNow.Add(-time.Hour), nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{freeze}, nil)

	pr := domain.PullRequest{Number: 9, TargetBranch: "main"}
	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/api", 9).Return(nil, nil)
	platform.On("PushMergeSignal", mock.Anything, repo, pr, true, freeze).Return(nil)

	err := reconciler.ReconcileSinglePR(context.Background(), testInstallation, repo, pr)

	require.NoError(t, err)
	platform.AssertExpectations(t)
}

func TestReconcileAllActive_FailingRepositoryIsReportedNotFatal(t *testing.T) {
	freezes := new(mockFreezeStore)
	unlocks := new(mockUnlockStore)
	platform := new(mockPlatform)
	reconciler := newTestReconciler(freezes, unlocks, platform)
	api := domain.Repository{Owner: "acme", Name: "api"}
	web := domain.Repository{Owner: "acme", Name: "web"}

	apiFreeze := activeRecord("acme/api", nil, testNow.Add(-time.Hour), nil)
	webFreeze := activeRecord("acme/web", nil, testNow.Add(-time.Hour), nil)
	freezes.On("ListActive", mock.Anything).
		Return([]*domain.FreezeRecord{apiFreeze, webFreeze}, nil)

	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/api",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{apiFreeze}, nil)
	freezes.On("FindForRepository", mock.Anything, testInstallation, "acme/web",
		[]domain.FreezeStatus{domain.FreezeActive}).
		Return([]*domain.FreezeRecord{webFreeze}, nil)

	platform.On("ListOpenPullRequests", mock.Anything, api).
		Return(nil, errors.New("api unreachable"))
	pr := domain.PullRequest{Number: 1, TargetBranch: "main"}
	platform.On("ListOpenPullRequests", mock.Anything, web).
		Return([]domain.PullRequest{pr}, nil)
	unlocks.On("FindUnlock", mock.Anything, testInstallation, "acme/web", 1).Return(nil, nil)
	platform.On("PushMergeSignal", mock.Anything, web, pr, true, webFreeze).Return(nil)

	results := reconciler.ReconcileAllActive(context.Background())

	require.Len(t, results, 2)
	require.Len(t, results["acme/api"].Failures, 1)
	assert.Contains(t, results["acme/api"].Failures[0].Error, "unreachable")
	assert.Equal(t, 1, results["acme/web"].Blocked)
	assert.Empty(t, results["acme/web"].Failures)
}
