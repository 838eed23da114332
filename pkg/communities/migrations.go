package communities

import "github.com/huddlehq/huddle/pkg/storage/postgres"

// Migrations returns the schema migrations owned by this package. The
// community_members unique index on (community_id, user_id) backs the
// one-role-per-user invariant; all cascades are issued explicitly by the
// service, so no ON DELETE CASCADE appears here.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     10,
			Description: "Create communities table",
			SQL: `
				CREATE TABLE IF NOT EXISTS communities (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) NOT NULL,
					description VARCHAR(500) NOT NULL,
					is_private BOOLEAN NOT NULL DEFAULT FALSE,
					creator_id BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_communities_creator_id ON communities(creator_id);
			`,
		},
		{
			Version:     11,
			Description: "Create community_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS community_members (
					id BIGSERIAL PRIMARY KEY,
					community_id BIGINT NOT NULL,
					user_id BIGINT NOT NULL,
					role VARCHAR(20) NOT NULL,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (community_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_community_members_community_id ON community_members(community_id);
				CREATE INDEX IF NOT EXISTS idx_community_members_user_id ON community_members(user_id);
				CREATE INDEX IF NOT EXISTS idx_community_members_role ON community_members(community_id, role);
			`,
		},
		{
			Version:     12,
			Description: "Create community_invites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS community_invites (
					id BIGSERIAL PRIMARY KEY,
					community_id BIGINT NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					issued_by BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_community_invites_community_id ON community_invites(community_id);
				CREATE INDEX IF NOT EXISTS idx_community_invites_expires_at ON community_invites(expires_at);
			`,
		},
	}
}
