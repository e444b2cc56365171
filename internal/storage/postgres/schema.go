package postgres

const schema = `
-- Documents table
CREATE TABLE IF NOT EXISTS plangraph_documents (
    key TEXT PRIMARY KEY,
    data BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
