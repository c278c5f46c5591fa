// Package storage provides SQLite-backed repositories for the credential
// vault: schema migrations, default seeding, soft-delete lifecycle,
// modification history, and the key/value settings and backup-history
// tables. All multi-statement mutations run in a single transaction.
package storage
