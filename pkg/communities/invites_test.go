package communities

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
)

func expectGetCommunity(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectQuery(`SELECT id, name, description, is_private, creator_id, created_at, updated_at\s+FROM communities\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(communityRows().
			AddRow(id, "gophers", "a community for gophers", true, int64(1), time.Now(), time.Now()))
}

func expectMembershipRole(mock sqlmock.Sqlmock, communityID, userID int64, role string) {
	rows := sqlmock.NewRows([]string{"role"})
	if role != "" {
		rows.AddRow(role)
	}
	mock.ExpectQuery(`SELECT role FROM community_members\s+WHERE community_id = \$1 AND user_id = \$2`).
		WithArgs(communityID, userID).
		WillReturnRows(rows)
}

func TestIssueInvite(t *testing.T) {
	actor := auth.Actor{UserID: 1}

	t.Run("admin issues an invite", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectGetCommunity(mock, 10)
		expectMembershipRole(mock, 10, 1, "admin")
		mock.ExpectQuery(`INSERT INTO community_invites`).
			WithArgs(int64(10), sqlmock.AnyArg(), int64(1), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))

		invite, err := svc.IssueInvite(actor, 10)
		require.NoError(t, err)
		assert.NotEmpty(t, invite.Token)
		assert.Equal(t, testBaseURL+"/invites/"+invite.Token, invite.ShareURL)
		assert.WithinDuration(t, time.Now().Add(InviteTTL), invite.ExpiresAt, time.Minute)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token collision regenerates once", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectGetCommunity(mock, 10)
		expectMembershipRole(mock, 10, 1, "owner")
		mock.ExpectQuery(`INSERT INTO community_invites`).
			WithArgs(int64(10), sqlmock.AnyArg(), int64(1), sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectQuery(`INSERT INTO community_invites`).
			WithArgs(int64(10), sqlmock.AnyArg(), int64(1), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(6), time.Now()))

		invite, err := svc.IssueInvite(actor, 10)
		require.NoError(t, err)
		assert.NotEmpty(t, invite.Token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("manager is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectGetCommunity(mock, 10)
		expectMembershipRole(mock, 10, 1, "manager")

		_, err := svc.IssueInvite(actor, 10)
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectGetCommunity(mock, 10)
		expectMembershipRole(mock, 10, 1, "")

		_, err := svc.IssueInvite(actor, 10)
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("missing community is not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`FROM communities`).
			WithArgs(int64(99)).
			WillReturnRows(communityRows())

		_, err := svc.IssueInvite(actor, 99)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestListInvites(t *testing.T) {
	actor := auth.Actor{UserID: 1}

	t.Run("newest first with share links", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectMembershipRole(mock, 10, 1, "admin")
		mock.ExpectQuery(`SELECT id, community_id, token, issued_by, created_at, expires_at\s+FROM community_invites\s+WHERE community_id = \$1\s+ORDER BY created_at DESC`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "token", "issued_by", "created_at", "expires_at"}).
				AddRow(int64(6), int64(10), "tok-b", int64(1), time.Now(), time.Now().Add(InviteTTL)).
				AddRow(int64(5), int64(10), "tok-a", int64(1), time.Now().Add(-time.Hour), time.Now().Add(InviteTTL)))

		invites, err := svc.ListInvites(actor, 10)
		require.NoError(t, err)
		require.Len(t, invites, 2)
		assert.Equal(t, testBaseURL+"/invites/tok-b", invites[0].ShareURL)
	})

	t.Run("developer is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectMembershipRole(mock, 10, 1, "developer_3")

		_, err := svc.ListInvites(actor, 10)
		assert.True(t, apperrors.IsForbidden(err))
	})
}

func TestRevokeInvite(t *testing.T) {
	actor := auth.Actor{UserID: 1}

	t.Run("removes the invite", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectMembershipRole(mock, 10, 1, "admin")
		mock.ExpectExec(`DELETE FROM community_invites WHERE id = \$1 AND community_id = \$2`).
			WithArgs(int64(5), int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.RevokeInvite(actor, 10, 5)
		assert.NoError(t, err)
	})

	t.Run("missing invite is not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectMembershipRole(mock, 10, 1, "admin")
		mock.ExpectExec(`DELETE FROM community_invites WHERE id = \$1 AND community_id = \$2`).
			WithArgs(int64(99), int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.RevokeInvite(actor, 10, 99)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		expectMembershipRole(mock, 10, 1, "")

		err := svc.RevokeInvite(actor, 10, 5)
		assert.True(t, apperrors.IsForbidden(err))
	})
}

func TestCleanupExpiredInvites(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec(`DELETE FROM community_invites WHERE expires_at < NOW\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := svc.CleanupExpiredInvites()
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
