package main

import (
	"context"

	"github.com/trezcool/kipimo/core/user"
)

// addUser creates an active user in the organization identified by orgSlug.
func (cli *commandLine) addUser(orgSlug, name, email, role, pwd string) error {
	ctx := context.Background()
	o, err := cli.orgSvc.GetBySlug(ctx, orgSlug)
	if err != nil {
		return err
	}

	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = nu.Validate(ctx, cli.usrSvc); err != nil {
		return err
	}
	if _, err = cli.usrSvc.Create(ctx, o.ID, nu); err != nil {
		return err
	}
	return nil
}
