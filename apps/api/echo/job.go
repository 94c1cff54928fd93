package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
)

type jobApi struct {
	jobs JobRunner
}

// registerJobAPI exposes the scheduled jobs so that admins can run them for their own organization.
func registerJobAPI(g *echo.Group, jobs JobRunner) {
	if jobs == nil {
		return
	}
	api := jobApi{jobs: jobs}

	jg := g.Group("/jobs")
	jg.GET("", api.list)
	jg.POST("/:job/run", api.run)
}

func (api *jobApi) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.jobs.Jobs())
}

func (api *jobApi) run(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	name := ctx.Param("job")
	if !core.StringInSlice(name, api.jobs.Jobs()) {
		return errHttpNotFound
	}
	if err = api.jobs.RunNow(ctx.Request().Context(), name, actor.OrgID); err != nil {
		return errors.Wrap(err, "running "+name)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: name + " ran for " + actor.OrgID})
}
