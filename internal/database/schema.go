package database

// schema is the single source of truth for the database layout.
//
// Three tables:
//   - internal_config: singleton key/value records (last validated config hash)
//   - sip_config:      plan definitions; label is the primary key, which is the
//     authoritative uniqueness guard behind the repository's
//     friendlier pre-insert check
//   - sip_history:     append-only execution ledger written by the executor
const schema = `
CREATE TABLE IF NOT EXISTS internal_config (
    id              TEXT PRIMARY KEY NOT NULL,
    value           TEXT NOT NULL,
    last_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sip_config (
    label      TEXT PRIMARY KEY NOT NULL,
    coins      TEXT NOT NULL, -- JSON object, symbol -> integer percentage
    interval   TEXT NOT NULL,
    amount     REAL NOT NULL,
    enabled    INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sip_history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    config_label   TEXT NOT NULL,
    executed_at    TEXT NOT NULL,
    coin           TEXT NOT NULL,
    amount_usd     REAL NOT NULL,
    size_received  REAL NOT NULL,
    coin_price_usd REAL NOT NULL,
    fee_usd        REAL NOT NULL,
    FOREIGN KEY(config_label) REFERENCES sip_config(label)
);

CREATE INDEX IF NOT EXISTS idx_sip_history_config ON sip_history(config_label, executed_at);
`
