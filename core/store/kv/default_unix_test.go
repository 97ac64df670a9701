//go:build linux || darwin

package kv

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBoltDB_New(t *testing.T) {
	db, err := New("")
	require.Nil(t, db)
	require.EqualError(t, err, "failed to open db: open : no such file or directory")
}

func TestBoltDB_New_Locked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")

	db, err := New(path)
	require.NoError(t, err)

	defer db.Close()

	_, err = New(path, WithOpenTimeout(50*time.Millisecond))
	require.EqualError(t, err, "failed to open db: timeout")
}
