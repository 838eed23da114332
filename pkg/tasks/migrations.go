package tasks

import "github.com/huddlehq/huddle/pkg/storage/postgres"

// Migrations returns the schema migrations owned by this package.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     30,
			Description: "Create tasks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					community_id BIGINT NOT NULL REFERENCES communities(id),
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status VARCHAR(20) NOT NULL DEFAULT 'todo',
					assignee_id BIGINT REFERENCES users(id),
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
				CREATE INDEX IF NOT EXISTS idx_tasks_community ON tasks(community_id);
				CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
			`,
		},
	}
}
