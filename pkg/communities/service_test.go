package communities

import (
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/pkg/apperrors"
	"github.com/huddlehq/huddle/pkg/auth"
	"github.com/huddlehq/huddle/pkg/rbac"
)

const testBaseURL = "http://localhost:8080"

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db, testBaseURL), mock
}

func communityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "is_private", "creator_id", "created_at", "updated_at",
	})
}

func expectLockCommunity(mock sqlmock.Sqlmock, id int64, isPrivate bool) {
	mock.ExpectQuery(`SELECT id, name, description, is_private, creator_id, created_at, updated_at\s+FROM communities\s+WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(communityRows().
			AddRow(id, "gophers", "a community for gophers", isPrivate, int64(1), time.Now(), time.Now()))
}

func expectLockRole(mock sqlmock.Sqlmock, communityID, userID int64, role rbac.Role) {
	rows := sqlmock.NewRows([]string{"role"})
	if role != "" {
		rows.AddRow(string(role))
	}
	mock.ExpectQuery(`SELECT role FROM community_members\s+WHERE community_id = \$1 AND user_id = \$2\s+FOR UPDATE`).
		WithArgs(communityID, userID).
		WillReturnRows(rows)
}

func expectCascadeDelete(mock sqlmock.Sqlmock, communityID int64) {
	mock.ExpectExec(`DELETE FROM tasks WHERE community_id`).
		WithArgs(communityID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM projects WHERE community_id`).
		WithArgs(communityID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM community_invites WHERE community_id`).
		WithArgs(communityID).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM community_members WHERE community_id`).
		WithArgs(communityID).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM communities WHERE id`).
		WithArgs(communityID).WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCreateCommunity(t *testing.T) {
	actor := auth.Actor{UserID: 1}
	valid := CreateCommunityRequest{Name: "gophers", Description: "a community for gophers"}

	t.Run("creates community with owner membership", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO communities`).
			WithArgs("gophers", "a community for gophers", false, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(10), time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO community_members`).
			WithArgs(int64(10), int64(1), string(rbac.RoleOwner)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		community, err := svc.CreateCommunity(actor, valid)
		require.NoError(t, err)
		assert.Equal(t, int64(10), community.ID)
		assert.Equal(t, int64(1), community.CreatorID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("name bounds", func(t *testing.T) {
		svc, _ := newMockService(t)

		_, err := svc.CreateCommunity(actor, CreateCommunityRequest{Name: "ab", Description: valid.Description})
		assert.True(t, apperrors.IsValidation(err))

		_, err = svc.CreateCommunity(actor, CreateCommunityRequest{Name: strings.Repeat("x", NameMaxLen+1), Description: valid.Description})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("description bounds", func(t *testing.T) {
		svc, _ := newMockService(t)

		_, err := svc.CreateCommunity(actor, CreateCommunityRequest{Name: valid.Name, Description: "too short"})
		assert.True(t, apperrors.IsValidation(err))

		_, err = svc.CreateCommunity(actor, CreateCommunityRequest{Name: valid.Name, Description: strings.Repeat("x", DescriptionMaxLen+1)})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("boundary lengths are accepted", func(t *testing.T) {
		svc, mock := newMockService(t)
		name := strings.Repeat("n", NameMinLen)
		desc := strings.Repeat("d", DescriptionMinLen)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO communities`).
			WithArgs(name, desc, true, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(11), time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO community_members`).
			WithArgs(int64(11), int64(1), string(rbac.RoleOwner)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := svc.CreateCommunity(actor, CreateCommunityRequest{Name: name, Description: desc, IsPrivate: true})
		assert.NoError(t, err)
	})

	t.Run("bounds count runes not bytes", func(t *testing.T) {
		svc, mock := newMockService(t)
		name := strings.Repeat("社", NameMaxLen) // 3 bytes per rune
		desc := strings.Repeat("コ", DescriptionMinLen)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO communities`).
			WithArgs(name, desc, false, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(12), time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO community_members`).
			WithArgs(int64(12), int64(1), string(rbac.RoleOwner)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := svc.CreateCommunity(actor, CreateCommunityRequest{Name: name, Description: desc})
		assert.NoError(t, err)

		_, err = svc.CreateCommunity(actor, CreateCommunityRequest{Name: strings.Repeat("社", NameMaxLen+1), Description: desc})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("membership insert failure rolls back", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO communities`).
			WithArgs("gophers", "a community for gophers", false, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(10), time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO community_members`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := svc.CreateCommunity(actor, valid)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetCommunity(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, name, description, is_private, creator_id, created_at, updated_at\s+FROM communities\s+WHERE id = \$1`).
			WithArgs(int64(10)).
			WillReturnRows(communityRows().
				AddRow(int64(10), "gophers", "a community for gophers", false, int64(1), time.Now(), time.Now()))

		community, err := svc.GetCommunity(10)
		require.NoError(t, err)
		assert.Equal(t, "gophers", community.Name)
	})

	t.Run("missing is not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectQuery(`SELECT id, name, description, is_private, creator_id, created_at, updated_at\s+FROM communities`).
			WithArgs(int64(99)).
			WillReturnRows(communityRows())

		_, err := svc.GetCommunity(99)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestListCommunities(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(`FROM communities c\s+JOIN community_members cm ON c.id = cm.community_id\s+WHERE cm.user_id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(communityRows().
			AddRow(int64(10), "gophers", "a community for gophers", false, int64(1), time.Now(), time.Now()).
			AddRow(int64(11), "rustaceans", "the other community", true, int64(3), time.Now(), time.Now()))

	result, err := svc.ListCommunities(2)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCommunity(t *testing.T) {
	actor := auth.Actor{UserID: 1}

	t.Run("manager can edit settings", func(t *testing.T) {
		svc, mock := newMockService(t)
		newName := "gophers-reborn"
		mock.ExpectBegin()
		expectLockCommunity(mock, 10, false)
		expectLockRole(mock, 10, 1, rbac.RoleManager)
		mock.ExpectQuery(`UPDATE communities SET`).
			WithArgs(newName, int64(10)).
			WillReturnRows(communityRows().
				AddRow(int64(10), newName, "a community for gophers", false, int64(1), time.Now(), time.Now()))
		mock.ExpectCommit()

		community, err := svc.UpdateCommunity(actor, 10, UpdateCommunityRequest{Name: &newName})
		require.NoError(t, err)
		assert.Equal(t, newName, community.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("developer is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		newName := "gophers-reborn"
		mock.ExpectBegin()
		expectLockCommunity(mock, 10, false)
		expectLockRole(mock, 10, 1, rbac.RoleDeveloperIII)
		mock.ExpectRollback()

		_, err := svc.UpdateCommunity(actor, 10, UpdateCommunityRequest{Name: &newName})
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		newName := "gophers-reborn"
		mock.ExpectBegin()
		expectLockCommunity(mock, 10, false)
		expectLockRole(mock, 10, 1, "")
		mock.ExpectRollback()

		_, err := svc.UpdateCommunity(actor, 10, UpdateCommunityRequest{Name: &newName})
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("missing community is not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		newName := "gophers-reborn"
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnRows(communityRows())
		mock.ExpectRollback()

		_, err := svc.UpdateCommunity(actor, 99, UpdateCommunityRequest{Name: &newName})
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("invalid new name rejected before any queries", func(t *testing.T) {
		svc, mock := newMockService(t)
		bad := "xx"

		_, err := svc.UpdateCommunity(actor, 10, UpdateCommunityRequest{Name: &bad})
		assert.True(t, apperrors.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteCommunity(t *testing.T) {
	actor := auth.Actor{UserID: 1}

	t.Run("admin can delete", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		expectLockCommunity(mock, 10, false)
		expectLockRole(mock, 10, 1, rbac.RoleAdmin)
		expectCascadeDelete(mock, 10)
		mock.ExpectCommit()

		err := svc.DeleteCommunity(actor, 10)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("manager is forbidden", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		expectLockCommunity(mock, 10, false)
		expectLockRole(mock, 10, 1, rbac.RoleManager)
		mock.ExpectRollback()

		err := svc.DeleteCommunity(actor, 10)
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("already deleted is not found", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs(int64(10)).
			WillReturnRows(communityRows())
		mock.ExpectRollback()

		err := svc.DeleteCommunity(actor, 10)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
