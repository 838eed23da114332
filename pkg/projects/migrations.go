package projects

import "github.com/huddlehq/huddle/pkg/storage/postgres"

// Migrations returns the schema migrations owned by this package.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     20,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					community_id BIGINT NOT NULL REFERENCES communities(id),
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_projects_community ON projects(community_id);
			`,
		},
	}
}
