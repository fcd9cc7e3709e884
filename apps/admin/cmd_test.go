package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
	inmemdb "github.com/adribv/edutool/storage/database/inmem"
	"github.com/adribv/edutool/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer, staff.Repository) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	validate, _ := testutil.NewValidator()

	staffRepo := inmemdb.NewStaffRepository(db)
	staffSvc := staff.NewService(staffRepo)
	out := new(bytes.Buffer)
	return &commandLine{
		conf:     &core.Config{AppName: "Edutool", SecretKey: "secret", Server: core.ServerConfig{JWTExpirationDelta: time.Hour}},
		db:       new(sql.DB),
		out:      out,
		validate: validate,
		staffSvc: staffSvc,
		permSvc:  permission.NewService(inmemdb.NewPermissionRepository(db), staffSvc, nil, validate),
	}, out, staffRepo
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, cli *commandLine) {
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "audit_log", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	t.Run("needs postgres", func(t *testing.T) {
		cli.db = nil
		cliTest{args: []string{"migrate", "up"}, wantErrStr: "postgres"}.check(t, cli)
	})
}

func Test_commandLine_addStaff(t *testing.T) {
	cli, out, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no name", args: []string{"addstaff", "-role", "Teacher"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"addstaff", "-name", "Ada", "-role", "Wizard"}, wantErrStr: "staff_role"},
		{name: "bad email", args: []string{"addstaff", "-name", "Ada", "-role", "Teacher", "-email", "ada"}, wantErrStr: "'email' tag"},
		{name: "created", args: []string{"addstaff", "-name", "Ada", "-role", "Teacher", "-email", "ada@school.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
	assert.Contains(t, out.String(), "created Ada (Teacher)")
}

func Test_commandLine_grantAndRevoke(t *testing.T) {
	cli, out, staffRepo := setup(t)
	testutil.CreateStaff(t, staffRepo, "acc-1", "Ama", "", rbac.RoleAccountant, "")

	tests := []cliTest{
		{name: "no staff", args: []string{"grant"}, wantErr: errHelp},
		{name: "unknown staff", args: []string{"grant", "-staff", "ghost"}, wantErr: permission.ErrStaffNotFound},
		{name: "malformed pair", args: []string{"grant", "-staff", "acc-1", "fees"}, wantErrStr: "want module=level"},
		{name: "unknown module", args: []string{"grant", "-staff", "acc-1", "juggling=View Access"}, wantErrStr: "module_key"},
		{name: "grant defaults", args: []string{"grant", "-staff", "acc-1", "-department", "Finance"}},
		{name: "merge one module", args: []string{"grant", "-staff", "acc-1", "library=Edit Access"}},
		{name: "revoke", args: []string{"revoke", "-staff", "acc-1"}},
		{name: "revoke again", args: []string{"revoke", "-staff", "acc-1"}, wantErr: permission.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
	assert.Contains(t, out.String(), "permissions granted for acc-1 (version 1)")
	assert.Contains(t, out.String(), "permissions updated for acc-1 (version 2)")
	assert.Contains(t, out.String(), "permissions revoked for acc-1")

	s, err := staffRepo.GetStaffByID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Finance", s.Department)
}

func Test_commandLine_defaultsAndToken(t *testing.T) {
	cli, out, staffRepo := setup(t)
	testutil.CreateStaff(t, staffRepo, "t-1", "Tia", "", rbac.RoleTeacher, "")

	tests := []cliTest{
		{name: "defaults without role", args: []string{"defaults"}, wantErr: errHelp},
		{name: "defaults of unknown role", args: []string{"defaults", "-role", "Wizard"}, wantErrStr: "unknown role"},
		{name: "defaults", args: []string{"defaults", "-role", "Teacher"}},
		{name: "token without staff", args: []string{"token"}, wantErr: errHelp},
		{name: "token of unknown staff", args: []string{"token", "-staff", "ghost"}, wantErr: staff.ErrNotFound},
		{name: "token", args: []string{"token", "-staff", "t-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
	assert.Contains(t, out.String(), `"students": "View Access"`)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, strings.Split(lines[len(lines)-1], "."), 3, "last line is a JWT")
}
