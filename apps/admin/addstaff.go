package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/adribv/edutool/core/staff"
)

// addStaff creates a staff member and prints its id.
func (cli *commandLine) addStaff(name, email, role, department string) error {
	ns := staff.NewStaff{Name: name, Email: email, Role: role, Department: department}
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}

	s, err := cli.staffSvc.Create(context.Background(), ns)
	if err != nil {
		return errors.Wrap(err, "creating staff")
	}
	fmt.Fprintf(cli.out, "created %s (%s): %s\n", s.Name, s.Role, s.ID)
	return nil
}
