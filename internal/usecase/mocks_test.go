package usecase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"repo-freeze-service/internal/domain"
)

type mockFreezeStore struct {
	mock.Mock
}

func (m *mockFreezeStore) Create(ctx context.Context, record *domain.FreezeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockFreezeStore) FindByScope(ctx context.Context, installationID int64, repository string, branch *string, statuses ...domain.FreezeStatus) ([]*domain.FreezeRecord, error) {
	args := m.Called(ctx, installationID, repository, branch, statuses)
	return records(args.Get(0)), args.Error(1)
}

func (m *mockFreezeStore) FindForRepository(ctx context.Context, installationID int64, repository string, statuses ...domain.FreezeStatus) ([]*domain.FreezeRecord, error) {
	args := m.Called(ctx, installationID, repository, statuses)
	return records(args.Get(0)), args.Error(1)
}

func (m *mockFreezeStore) ListActive(ctx context.Context) ([]*domain.FreezeRecord, error) {
	args := m.Called(ctx)
	return records(args.Get(0)), args.Error(1)
}

func (m *mockFreezeStore) FindExpiring(ctx context.Context, before time.Time) ([]*domain.FreezeRecord, error) {
	args := m.Called(ctx, before)
	return records(args.Get(0)), args.Error(1)
}

func (m *mockFreezeStore) FindDueScheduled(ctx context.Context, asOf time.Time) ([]*domain.FreezeRecord, error) {
	args := m.Called(ctx, asOf)
	return records(args.Get(0)), args.Error(1)
}

func (m *mockFreezeStore) UpdateStatus(ctx context.Context, id uuid.UUID, expect, next domain.FreezeStatus, endedBy *string) (bool, error) {
	args := m.Called(ctx, id, expect, next, endedBy)
	return args.Bool(0), args.Error(1)
}

func records(v interface{}) []*domain.FreezeRecord {
	if v == nil {
		return nil
	}
	return v.([]*domain.FreezeRecord)
}

type mockUnlockStore struct {
	mock.Mock
}

func (m *mockUnlockStore) CreateUnlock(ctx context.Context, unlock *domain.UnlockedPr) error {
	args := m.Called(ctx, unlock)
	return args.Error(0)
}

func (m *mockUnlockStore) FindUnlock(ctx context.Context, installationID int64, repository string, prNumber int) (*domain.UnlockedPr, error) {
	args := m.Called(ctx, installationID, repository, prNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnlockedPr), args.Error(1)
}

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) ApplyProtection(ctx context.Context, repo domain.Repository, branch *string) error {
	args := m.Called(ctx, repo, branch)
	return args.Error(0)
}

func (m *mockPlatform) RemoveProtection(ctx context.Context, repo domain.Repository, branch *string) error {
	args := m.Called(ctx, repo, branch)
	return args.Error(0)
}

func (m *mockPlatform) ListOpenPullRequests(ctx context.Context, repo domain.Repository) ([]domain.PullRequest, error) {
	args := m.Called(ctx, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func (m *mockPlatform) PushMergeSignal(ctx context.Context, repo domain.Repository, pr domain.PullRequest, block bool, freeze *domain.FreezeRecord) error {
	args := m.Called(ctx, repo, pr, block, freeze)
	return args.Error(0)
}

func (m *mockPlatform) ListInstallationRepositories(ctx context.Context, installationID int64) ([]domain.Repository, error) {
	args := m.Called(ctx, installationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Repository), args.Error(1)
}

func (m *mockPlatform) CreateComment(ctx context.Context, repo domain.Repository, issueNumber int, body string) error {
	args := m.Called(ctx, repo, issueNumber, body)
	return args.Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

func durPtr(d time.Duration) *time.Duration { return &d }

func timePtr(t time.Time) *time.Time { return &t }
