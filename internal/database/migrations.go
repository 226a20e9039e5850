package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS plans (
		id VARCHAR(32) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		monthly_price NUMERIC(10,2) NOT NULL DEFAULT 0,
		is_unlimited BOOLEAN NOT NULL DEFAULT FALSE,
		families DOUBLE PRECISION NOT NULL,
		family_members DOUBLE PRECISION NOT NULL,
		lists_per_family DOUBLE PRECISION NOT NULL,
		items_per_list DOUBLE PRECISION NOT NULL,
		collaborators_per_list DOUBLE PRECISION NOT NULL,
		perks TEXT[] NOT NULL DEFAULT '{}',
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		locale VARCHAR(16) NOT NULL DEFAULT 'en',
		avatar_url VARCHAR(500),
		provider VARCHAR(50) NOT NULL DEFAULT 'password',
		provider_id VARCHAR(255),
		password_hash VARCHAR(255),
		role VARCHAR(20) NOT NULL DEFAULT 'member',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		primary_family_id UUID,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider ON users(provider, provider_id) WHERE provider_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS user_billing (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		plan_id VARCHAR(32) NOT NULL DEFAULT 'free',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		seats_total INTEGER NOT NULL DEFAULT 3,
		seats_used INTEGER NOT NULL DEFAULT 1,
		invites_total INTEGER NOT NULL DEFAULT 3,
		invites_used INTEGER NOT NULL DEFAULT 0,
		lists_created INTEGER NOT NULL DEFAULT 0,
		items_tracked INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS families (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS family_members (
		family_id UUID NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'viewer',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		removed_at TIMESTAMP WITH TIME ZONE,
		allowed_lists UUID[],
		PRIMARY KEY (family_id, user_id)
	)`,

	// Append-only history of a user's family memberships. Leaving sets removed_at.
	`CREATE TABLE IF NOT EXISTS family_links (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		family_id UUID NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		removed_at TIMESTAMP WITH TIME ZONE
	)`,

	`CREATE TABLE IF NOT EXISTS family_invites (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		family_id UUID NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token UUID NOT NULL UNIQUE,
		code CHAR(6) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		max_uses INTEGER NOT NULL,
		used_count INTEGER NOT NULL DEFAULT 0,
		accepted_by UUID[] NOT NULL DEFAULT '{}',
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CHECK (used_count <= max_uses)
	)`,

	`CREATE TABLE IF NOT EXISTS lists (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		family_id UUID NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(20) NOT NULL DEFAULT 'shopping',
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS list_items (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		list_id UUID NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		checked BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS password_resets (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL UNIQUE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		used_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_family_members_user_id ON family_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_family_links_user_id ON family_links(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_family_links_family_id ON family_links(family_id)`,
	`CREATE INDEX IF NOT EXISTS idx_family_invites_family_id ON family_invites(family_id)`,
	`CREATE INDEX IF NOT EXISTS idx_families_owner_id ON families(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_lists_family_id ON lists(family_id)`,
	`CREATE INDEX IF NOT EXISTS idx_list_items_list_id ON list_items(list_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,

	// Codes only need to be unique among pending invites of one family.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_family_invites_pending_code
		ON family_invites(family_id, code) WHERE status = 'pending'`,

	`DO $$
	BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_name = 'users' AND constraint_name = 'users_primary_family_id_fkey'
		) THEN
			ALTER TABLE users ADD CONSTRAINT users_primary_family_id_fkey
				FOREIGN KEY (primary_family_id) REFERENCES families(id) ON DELETE SET NULL;
		END IF;
	END $$`,

	// Migration: collapse the legacy "titular" member role into "owner"
	`UPDATE family_members SET role = 'owner' WHERE role = 'titular'`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
