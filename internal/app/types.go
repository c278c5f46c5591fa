package app

import "errors"

var ErrValidation = errors.New("app: validation failed")

const (
	BackupKindLocal  = "local"
	BackupKindRemote = "remote"

	BackupStatusSuccess = "success"
	BackupStatusFailed  = "failed"
)

// ImportReport summarizes one import run: how many rows were persisted and
// the per-row validation messages for the rejected ones.
type ImportReport struct {
	Imported int
	Errors   []string
}
