package main

import (
	"context"
	"fmt"

	"github.com/trezcool/kipimo/core/user"
)

// createOrg registers an organization along with its first admin.
func (cli *commandLine) createOrg(orgName, adminName, email, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            adminName,
		Email:           email,
		Role:            user.RoleAdmin,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(ctx, cli.usrSvc); err != nil {
		return err
	}

	o, usr, err := cli.orgSvc.Register(ctx, orgName, nu)
	if err != nil {
		return err
	}
	fmt.Printf("created organization %q (%s) with admin %s\n", o.Name, o.Slug, usr.Email)
	return nil
}
