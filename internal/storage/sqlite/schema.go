package sqlite

// latestSchemaVersion is the highest schema version this package knows how
// to migrate to and operate against.
const latestSchemaVersion = 2

const createSchemaMigrationsSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// migration001SQL creates the legacy v1 schema, keyed by memory_id: one row
// per logical memory, with no version history.
const migration001SQL = `
CREATE TABLE IF NOT EXISTS memory_records (
  memory_id TEXT PRIMARY KEY,
  version INTEGER NOT NULL CHECK (version >= 1),
  record_type TEXT NOT NULL CHECK (record_type IN ('constraint','decision','preference','event','outcome')),
  created_at TEXT NOT NULL,
  effective_at TEXT NOT NULL,
  truth_status TEXT NOT NULL CHECK (truth_status IN ('asserted','observed','inferred','speculative','retracted')),
  authority TEXT NOT NULL CHECK (authority IN ('authoritative','derived','note')),
  confidence REAL,
  writer TEXT NOT NULL,
  justification TEXT NOT NULL,
  source_uri TEXT NOT NULL,
  source_hash TEXT,
  evidence_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_links (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  from_memory_id TEXT NOT NULL,
  to_memory_id TEXT NOT NULL,
  link_type TEXT NOT NULL CHECK (link_type IN ('supersedes','contradicts')),
  writer TEXT NOT NULL,
  justification TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY (from_memory_id) REFERENCES memory_records(memory_id),
  FOREIGN KEY (to_memory_id) REFERENCES memory_records(memory_id)
);

CREATE TABLE IF NOT EXISTS context_packages (
  context_package_id TEXT PRIMARY KEY,
  generated_at TEXT NOT NULL,
  package_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS constraint_payloads (
  memory_id TEXT PRIMARY KEY,
  actor TEXT NOT NULL,
  action TEXT NOT NULL,
  resource TEXT NOT NULL,
  effect TEXT NOT NULL CHECK (effect IN ('allow','deny')),
  note TEXT,
  FOREIGN KEY (memory_id) REFERENCES memory_records(memory_id)
);

CREATE TABLE IF NOT EXISTS decision_payloads (
  memory_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_id) REFERENCES memory_records(memory_id)
);

CREATE TABLE IF NOT EXISTS preference_payloads (
  memory_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_id) REFERENCES memory_records(memory_id)
);

CREATE TABLE IF NOT EXISTS event_payloads (
  memory_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_id) REFERENCES memory_records(memory_id)
);

CREATE TABLE IF NOT EXISTS outcome_payloads (
  memory_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_id) REFERENCES memory_records(memory_id)
);

CREATE INDEX IF NOT EXISTS idx_memory_records_type ON memory_records(record_type);
CREATE INDEX IF NOT EXISTS idx_memory_records_effective_at ON memory_records(effective_at);
CREATE INDEX IF NOT EXISTS idx_memory_links_from ON memory_links(from_memory_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_to ON memory_links(to_memory_id);
`

// migration002CreateV2TablesSQL creates the v2 shape alongside the legacy
// tables, keyed by memory_version_id with a UNIQUE(memory_id, version)
// constraint preserving lineage ordering.
const migration002CreateV2TablesSQL = `
CREATE TABLE IF NOT EXISTS memory_records_v2 (
  memory_version_id TEXT PRIMARY KEY,
  memory_id TEXT NOT NULL,
  version INTEGER NOT NULL CHECK (version >= 1),
  record_type TEXT NOT NULL CHECK (record_type IN ('constraint','decision','preference','event','outcome')),
  created_at TEXT NOT NULL,
  effective_at TEXT NOT NULL,
  truth_status TEXT NOT NULL CHECK (truth_status IN ('asserted','observed','inferred','speculative','retracted')),
  authority TEXT NOT NULL CHECK (authority IN ('authoritative','derived','note')),
  confidence REAL,
  writer TEXT NOT NULL,
  justification TEXT NOT NULL,
  source_uri TEXT NOT NULL,
  source_hash TEXT,
  evidence_json TEXT NOT NULL,
  UNIQUE(memory_id, version)
);

CREATE TABLE IF NOT EXISTS memory_links_v2 (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  from_memory_version_id TEXT NOT NULL,
  to_memory_version_id TEXT NOT NULL,
  link_type TEXT NOT NULL CHECK (link_type IN ('supersedes','contradicts')),
  writer TEXT NOT NULL,
  justification TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY (from_memory_version_id) REFERENCES memory_records_v2(memory_version_id),
  FOREIGN KEY (to_memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);

CREATE TABLE IF NOT EXISTS constraint_payloads_v2 (
  memory_version_id TEXT PRIMARY KEY,
  actor TEXT NOT NULL,
  action TEXT NOT NULL,
  resource TEXT NOT NULL,
  effect TEXT NOT NULL CHECK (effect IN ('allow','deny')),
  note TEXT,
  FOREIGN KEY (memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);

CREATE TABLE IF NOT EXISTS decision_payloads_v2 (
  memory_version_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);

CREATE TABLE IF NOT EXISTS preference_payloads_v2 (
  memory_version_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);

CREATE TABLE IF NOT EXISTS event_payloads_v2 (
  memory_version_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);

CREATE TABLE IF NOT EXISTS outcome_payloads_v2 (
  memory_version_id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  FOREIGN KEY (memory_version_id) REFERENCES memory_records_v2(memory_version_id)
);
`

const migration002ReplaceTablesSQL = `
DROP TABLE constraint_payloads;
DROP TABLE decision_payloads;
DROP TABLE preference_payloads;
DROP TABLE event_payloads;
DROP TABLE outcome_payloads;
DROP TABLE memory_links;
DROP TABLE memory_records;

ALTER TABLE memory_records_v2 RENAME TO memory_records;
ALTER TABLE memory_links_v2 RENAME TO memory_links;
ALTER TABLE constraint_payloads_v2 RENAME TO constraint_payloads;
ALTER TABLE decision_payloads_v2 RENAME TO decision_payloads;
ALTER TABLE preference_payloads_v2 RENAME TO preference_payloads;
ALTER TABLE event_payloads_v2 RENAME TO event_payloads;
ALTER TABLE outcome_payloads_v2 RENAME TO outcome_payloads;
`

const migration002FinalIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_memory_records_type ON memory_records(record_type);
CREATE INDEX IF NOT EXISTS idx_memory_records_memory_id ON memory_records(memory_id);
CREATE INDEX IF NOT EXISTS idx_memory_records_effective_at ON memory_records(effective_at);
CREATE INDEX IF NOT EXISTS idx_memory_links_from ON memory_links(from_memory_version_id);
CREATE INDEX IF NOT EXISTS idx_memory_links_to ON memory_links(to_memory_version_id);
`
