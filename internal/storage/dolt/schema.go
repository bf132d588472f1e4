//go:build cgo

package dolt

// currentSchemaVersion is bumped whenever schema (below) gains a statement that
// won't be picked up by CREATE TABLE IF NOT EXISTS on an already-initialized
// database. initSchemaOnDB short-circuits when config.schema_version is already
// at this value.
const currentSchemaVersion = 1

// schema is the full DDL for a freshly created database. Statements are split
// on blank lines by splitStatements and executed one at a time, since Dolt's
// MySQL wire protocol (like MySQL itself) rejects multi-statement Exec calls.
const schema = `
CREATE TABLE IF NOT EXISTS config (
	` + "`key`" + ` VARCHAR(255) NOT NULL PRIMARY KEY,
	` + "`value`" + ` TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS namespaces (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	slug VARCHAR(255) NOT NULL,
	owner_id VARCHAR(255),
	description TEXT,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_namespace_slug (slug)
);

CREATE TABLE IF NOT EXISTS memory_blocks (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	namespace_id VARCHAR(64) NOT NULL,
	block_type VARCHAR(32) NOT NULL,
	schema_version INT,
	body LONGTEXT NOT NULL,
	state VARCHAR(16) NOT NULL DEFAULT 'draft',
	visibility VARCHAR(16) NOT NULL DEFAULT 'internal',
	block_version INT NOT NULL DEFAULT 1,
	tags JSON NOT NULL,
	source_file VARCHAR(1024),
	source_uri VARCHAR(2048),
	created_by VARCHAR(255),
	confidence_human DOUBLE,
	confidence_ai DOUBLE,
	embedding JSON,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	CONSTRAINT fk_blocks_namespace FOREIGN KEY (namespace_id) REFERENCES namespaces(id)
);

CREATE TABLE IF NOT EXISTS block_properties (
	block_id VARCHAR(64) NOT NULL,
	prop_key VARCHAR(255) NOT NULL,
	value_kind VARCHAR(16) NOT NULL,
	value_json LONGTEXT NOT NULL,
	PRIMARY KEY (block_id, prop_key),
	CONSTRAINT fk_props_block FOREIGN KEY (block_id) REFERENCES memory_blocks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS block_links (
	id VARCHAR(192) NOT NULL PRIMARY KEY,
	from_block_id VARCHAR(64) NOT NULL,
	to_block_id VARCHAR(64) NOT NULL,
	relation VARCHAR(32) NOT NULL,
	priority INT NOT NULL DEFAULT 0,
	link_metadata JSON,
	created_by VARCHAR(255),
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uq_link (from_block_id, to_block_id, relation),
	CONSTRAINT fk_links_from FOREIGN KEY (from_block_id) REFERENCES memory_blocks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS block_proofs (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	block_id VARCHAR(64) NOT NULL,
	operation VARCHAR(16) NOT NULL,
	commit_hash VARCHAR(64) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	CONSTRAINT fk_proofs_block FOREIGN KEY (block_id) REFERENCES memory_blocks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_blocks_namespace ON memory_blocks(namespace_id);
CREATE INDEX IF NOT EXISTS idx_blocks_state ON memory_blocks(state);
CREATE INDEX IF NOT EXISTS idx_blocks_type ON memory_blocks(block_type);
CREATE INDEX IF NOT EXISTS idx_links_to ON block_links(to_block_id, relation);
CREATE INDEX IF NOT EXISTS idx_links_from ON block_links(from_block_id, relation);
CREATE INDEX IF NOT EXISTS idx_proofs_block ON block_proofs(block_id);
`

// defaultConfig seeds the config table and the reserved legacy namespace every
// store is expected to have present (spec.md's namespace model — blocks with
// no explicit namespace fall back to "legacy").
const defaultConfig = `
INSERT INTO config (` + "`key`" + `, ` + "`value`" + `) VALUES ('schema_version', '0')
	ON DUPLICATE KEY UPDATE ` + "`value`" + ` = ` + "`value`" + `;

INSERT INTO namespaces (id, name, slug, is_active, created_at)
	VALUES ('legacy', 'legacy', 'legacy', TRUE, UTC_TIMESTAMP(6))
	ON DUPLICATE KEY UPDATE id = id;
`

// publishedBlocksView surfaces blocks that have left draft state, mirroring
// the teacher's ready/blocked view pair but over publication state rather
// than dependency graphs.
const publishedBlocksView = `
CREATE OR REPLACE VIEW published_blocks AS
SELECT * FROM memory_blocks WHERE state = 'published';
`

const draftBlocksView = `
CREATE OR REPLACE VIEW draft_blocks AS
SELECT * FROM memory_blocks WHERE state = 'draft';
`
