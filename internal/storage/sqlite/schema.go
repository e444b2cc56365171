package sqlite

const schema = `
-- Documents table
CREATE TABLE IF NOT EXISTS documents (
    key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);
`
