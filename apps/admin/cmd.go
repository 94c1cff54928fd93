package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type jobRunner interface {
	Jobs() []string
	RunNow(ctx context.Context, name string, orgIDs ...string) error
}

type commandLine struct {
	db     *sqlx.DB
	usrSvc user.Service
	orgSvc org.Service
	jobs   jobRunner
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  createorg -name NAME -admin NAME -email EMAIL - create an organization & its admin")
	fmt.Println("  adduser -org SLUG -name NAME -email EMAIL [-role ROLE] - add a user to an organization")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  runjob -job JOB [-org SLUG] - run a scheduler job now, for one or all organizations")
}

// promptPassword reads a password from the terminal, without echoing it.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createOrgCmd := flag.NewFlagSet("createorg", flag.ExitOnError)
	createOrgName := createOrgCmd.String("name", "", "The organization's name.")
	createOrgAdmin := createOrgCmd.String("admin", "", "The admin's full name.")
	createOrgEmail := createOrgCmd.String("email", "", "The admin's email. The password will be prompted next.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserOrg := addUserCmd.String("org", "", "The organization's slug.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleEmployee, "The user's role: admin, manager or employee.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	runJobCmd := flag.NewFlagSet("runjob", flag.ExitOnError)
	runJobName := runJobCmd.String("job", "", "The job to run.")
	runJobOrg := runJobCmd.String("org", "", "The organization's slug. All organizations when empty.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createorg":
		if err := createOrgCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createOrgName == "" || *createOrgAdmin == "" || *createOrgEmail == "" {
			createOrgCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter admin password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			createOrgCmd.Usage()
			return errHelp
		}
		return cli.createOrg(*createOrgName, *createOrgAdmin, *createOrgEmail, pwd)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserOrg == "" || *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserOrg, *addUserName, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "runjob":
		if err := runJobCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *runJobName == "" {
			runJobCmd.Usage()
			fmt.Printf("jobs: %v\n", cli.jobs.Jobs())
			return errHelp
		}
		return cli.runJob(*runJobName, *runJobOrg)

	default:
		cli.printUsage()
		return errHelp
	}
}
