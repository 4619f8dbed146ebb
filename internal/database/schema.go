package database

import "strings"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id UUID PRIMARY KEY,
		title VARCHAR(200) NOT NULL CHECK (length(btrim(title)) > 0),
		description VARCHAR(1000) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'todo'
			CHECK (status IN ('todo', 'in_progress', 'review', 'done', 'archived')),
		priority VARCHAR(10) NOT NULL DEFAULT 'medium'
			CHECK (priority IN ('low', 'medium', 'high')),
		due_date TIMESTAMPTZ,
		tags TEXT[] NOT NULL DEFAULT '{}',
		assigned_to UUID,
		completed_at TIMESTAMPTZ,
		status_history JSONB NOT NULL DEFAULT '[]'::jsonb
			CHECK (jsonb_array_length(status_history) > 0),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// Title weighs more than tags, tags more than description.
	// array_to_string is only STABLE, so the wrapper is declared IMMUTABLE to allow indexing.
	`CREATE OR REPLACE FUNCTION todos_search_vector(title TEXT, description TEXT, tags TEXT[])
	RETURNS tsvector LANGUAGE sql IMMUTABLE AS $$
		SELECT setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
		       setweight(to_tsvector('english', coalesce(array_to_string(tags, ' '), '')), 'B') ||
		       setweight(to_tsvector('english', coalesce(description, '')), 'C')
	$$`,
	`CREATE INDEX IF NOT EXISTS idx_todos_status ON todos (status)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_priority_due ON todos (priority, due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_assigned_to ON todos (assigned_to)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_tags ON todos USING GIN (tags)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_search ON todos USING GIN (` + searchVector + `)`,
}

const searchVector = `todos_search_vector(title, description, tags)`

// Schema returns the DDL applied by Migrate, for display by the admin CLI
func Schema() string {
	return strings.Join(schemaStatements, ";\n\n") + ";\n"
}
