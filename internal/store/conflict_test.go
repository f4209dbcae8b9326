package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantOK   bool
		wantKind ConflictKind
	}{
		{
			name:     "pgx email constraint",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key", Message: "duplicate key value violates unique constraint \"users_email_key\""},
			wantOK:   true,
			wantKind: ConflictEmail,
		},
		{
			name:     "pgx nickname constraint wrapped by gorm",
			err:      fmt.Errorf("create account: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_nickname_key"}),
			wantOK:   true,
			wantKind: ConflictNickname,
		},
		{
			name:     "pgx unnamed constraint falls back to detail column",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "users_pkey2", Detail: "Key (nickname)=(emailfan) already exists."},
			wantOK:   true,
			wantKind: ConflictNickname,
		},
		{
			name:   "pgx foreign key violation is not a conflict",
			err:    &pgconn.PgError{Code: "23503", ConstraintName: "users_team_id_fkey"},
			wantOK: false,
		},
		{
			name:     "lib/pq email constraint",
			err:      &pq.Error{Code: "23505", Constraint: "auth_identities_email_key"},
			wantOK:   true,
			wantKind: ConflictEmail,
		},
		{
			name:     "postgres message only",
			err:      errors.New(`ERROR: duplicate key value violates unique constraint "users_nickname_key" (SQLSTATE 23505)`),
			wantOK:   true,
			wantKind: ConflictNickname,
		},
		{
			name:     "sqlite message",
			err:      errors.New("UNIQUE constraint failed: users.email"),
			wantOK:   true,
			wantKind: ConflictEmail,
		},
		{
			name:     "sqlite primary key",
			err:      errors.New("UNIQUE constraint failed: teams.id"),
			wantOK:   true,
			wantKind: ConflictOther,
		},
		{
			name:   "unrelated error",
			err:    errors.New("connection refused"),
			wantOK: false,
		},
		{
			name:   "nil",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict, ok := ClassifyConflict(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, conflict)
				return
			}

			require.NotNil(t, conflict)
			assert.Equal(t, tt.wantKind, conflict.Kind)
			assert.ErrorIs(t, conflict, ErrConflict)
		})
	}
}

func TestClassifyConflict_AlreadyClassified(t *testing.T) {
	original := &ConflictError{Kind: ConflictNickname, Constraint: "users_nickname_key", Err: errors.New("dup")}

	conflict, ok := ClassifyConflict(fmt.Errorf("update: %w", original))
	require.True(t, ok)
	assert.Same(t, original, conflict)
}
