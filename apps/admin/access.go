package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	echoapi "github.com/adribv/edutool/apps/api/echo"
	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
)

// parseLevels reads "module=level" pairs, e.g. "fees=View Access".
func parseLevels(pairs []string) (map[rbac.Module]rbac.Level, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	levels := make(map[rbac.Module]rbac.Level, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("invalid permission %q, want module=level", pair)
		}
		levels[rbac.Module(core.CleanString(kv[0]))] = rbac.Level(core.CleanString(kv[1]))
	}
	return levels, nil
}

func (cli *commandLine) print(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding output")
	}
	fmt.Fprintln(cli.out, string(data))
	return nil
}

func (cli *commandLine) grant(staffID, role, department string, pairs []string) error {
	levels, err := parseLevels(pairs)
	if err != nil {
		return err
	}

	rec, created, err := cli.permSvc.Upsert(context.Background(), permission.Assignment{
		StaffID:     staffID,
		Role:        role,
		Department:  department,
		Permissions: levels,
		AssignedBy:  "admin-cli",
	})
	if err != nil {
		return err
	}
	if role != "" || department != "" {
		if _, err = cli.staffSvc.SyncAssignment(context.Background(), rec.StaffID, rec.Role, rec.Department); err != nil {
			return errors.Wrap(err, "syncing staff assignment")
		}
	}

	action := "updated"
	if created {
		action = "granted"
	}
	fmt.Fprintf(cli.out, "permissions %s for %s (version %d)\n", action, rec.StaffID, rec.Version)
	return cli.print(rec.Permissions)
}

func (cli *commandLine) revoke(staffID string) error {
	rec, err := cli.permSvc.Deactivate(context.Background(), staffID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "permissions revoked for %s\n", rec.StaffID)
	return nil
}

func (cli *commandLine) defaults(role, department string) error {
	r := rbac.Role(core.CleanString(role))
	if !r.Valid() {
		return errors.Errorf("unknown role %q", role)
	}
	return cli.print(rbac.ResolveDefaults(r, core.CleanString(department)))
}

func (cli *commandLine) token(staffID string) error {
	s, err := cli.staffSvc.GetByID(context.Background(), core.CleanString(staffID))
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.NewClaims(cli.conf, s))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
