package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/staff"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sql.DB // nil unless the storage engine is postgres
	out      io.Writer
	validate *validator.Validate
	staffSvc staff.Service
	permSvc  permission.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                 - run goose migrations (postgres only)")
	fmt.Fprintln(cli.out, "  addstaff -name NAME -role ROLE [-email E] [-department D] - create a staff member")
	fmt.Fprintln(cli.out, "  grant -staff ID [-role R] [-department D] module=level... - assign module permissions")
	fmt.Fprintln(cli.out, "  revoke -staff ID                                       - deactivate the permissions of a staff member")
	fmt.Fprintln(cli.out, "  defaults -role ROLE [-department D]                    - print the default permissions of a role")
	fmt.Fprintln(cli.out, "  token -staff ID                                        - mint an API token for a staff member")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStaffCmd := cli.newFlagSet("addstaff")
	addStaffName := addStaffCmd.String("name", "", "The staff member's full name.")
	addStaffRole := addStaffCmd.String("role", "", "The staff member's role, e.g. Teacher.")
	addStaffEmail := addStaffCmd.String("email", "", "The staff member's email, used for notifications.")
	addStaffDept := addStaffCmd.String("department", "", "The staff member's department.")

	grantCmd := cli.newFlagSet("grant")
	grantStaff := grantCmd.String("staff", "", "The staff member's id.")
	grantRole := grantCmd.String("role", "", "The role whose defaults seed a new record.")
	grantDept := grantCmd.String("department", "", "The staff member's department.")

	revokeCmd := cli.newFlagSet("revoke")
	revokeStaff := revokeCmd.String("staff", "", "The staff member's id.")

	defaultsCmd := cli.newFlagSet("defaults")
	defaultsRole := defaultsCmd.String("role", "", "The role to print.")
	defaultsDept := defaultsCmd.String("department", "", "The department, for roles that depend on it.")

	tokenCmd := cli.newFlagSet("token")
	tokenStaff := tokenCmd.String("staff", "", "The staff member's id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addstaff":
		if err := addStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStaffName == "" || *addStaffRole == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		return cli.addStaff(*addStaffName, *addStaffEmail, *addStaffRole, *addStaffDept)
	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantStaff == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grant(*grantStaff, *grantRole, *grantDept, grantCmd.Args())
	case "revoke":
		if err := revokeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokeStaff == "" {
			revokeCmd.Usage()
			return errHelp
		}
		return cli.revoke(*revokeStaff)
	case "defaults":
		if err := defaultsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *defaultsRole == "" {
			defaultsCmd.Usage()
			return errHelp
		}
		return cli.defaults(*defaultsRole, *defaultsDept)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenStaff == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenStaff)
	default:
		cli.printUsage()
		return errHelp
	}
}
