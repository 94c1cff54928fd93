package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) runJob(name, orgSlug string) error {
	ctx := context.Background()
	var orgIDs []string
	if orgSlug != "" {
		o, err := cli.orgSvc.GetBySlug(ctx, orgSlug)
		if err != nil {
			return err
		}
		orgIDs = append(orgIDs, o.ID)
	}
	if err := cli.jobs.RunNow(ctx, name, orgIDs...); err != nil {
		return err
	}
	fmt.Printf("%s done\n", name)
	return nil
}
