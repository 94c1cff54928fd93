package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

type orgApi struct {
	svc    org.Service
	usrSvc user.Service
}

func registerOrgAPI(g *echo.Group, svc org.Service, usrSvc user.Service) {
	api := orgApi{svc: svc, usrSvc: usrSvc}

	g.GET("/org", api.retrieve)
	g.PUT("/org", api.update, requireRoles(user.RoleAdmin))
	g.GET("/org/settings", api.settings)
	g.PUT("/org/settings", api.updateSettings)

	tg := g.Group("/teams")
	tg.GET("", api.queryTeams)
	tg.POST("", api.createTeam, requireRoles(user.RoleAdmin, user.RoleManager))
	tg.GET("/:id", api.retrieveTeam)
	tg.PUT("/:id", api.updateTeam, requireRoles(user.RoleAdmin, user.RoleManager))
	tg.DELETE("/:id", api.destroyTeam, requireRoles(user.RoleAdmin, user.RoleManager))
}

func (api *orgApi) contextOrg(ctx echo.Context) (user.User, org.Organization, error) {
	actor, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, org.Organization{}, errors.Wrap(err, "getting context user")
	}
	o, err := api.svc.GetByID(ctx.Request().Context(), actor.OrgID)
	if err != nil {
		return user.User{}, org.Organization{}, errors.Wrap(err, "finding organization")
	}
	return actor, o, nil
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	_, o, err := api.contextOrg(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) update(ctx echo.Context) error {
	_, o, err := api.contextOrg(ctx)
	if err != nil {
		return err
	}
	var data org.UpdateOrg
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if o, err = api.svc.Update(ctx.Request().Context(), o, data); err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) settings(ctx echo.Context) error {
	_, o, err := api.contextOrg(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o.Settings)
}

func (api *orgApi) updateSettings(ctx echo.Context) error {
	_, o, err := api.contextOrg(ctx)
	if err != nil {
		return err
	}
	var data org.UpdateSettings
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if o, err = api.svc.UpdateSettings(ctx.Request().Context(), o, data); err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, o.Settings)
}

func (api *orgApi) queryTeams(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	teams, err := api.svc.QueryTeams(ctx.Request().Context(), actor.OrgID)
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}
	if teams == nil {
		teams = []org.Team{}
	}
	return ctx.JSON(http.StatusOK, teams)
}

func (api *orgApi) createTeam(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data org.NewTeam
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	t, err := api.svc.CreateTeam(ctx.Request().Context(), actor.OrgID, data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *orgApi) team(ctx echo.Context) (org.Team, error) {
	actor, err := getContextUser(ctx)
	if err != nil {
		return org.Team{}, errors.Wrap(err, "getting context user")
	}
	return api.svc.GetTeam(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
}

func (api *orgApi) retrieveTeam(ctx echo.Context) error {
	t, err := api.team(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *orgApi) updateTeam(ctx echo.Context) error {
	t, err := api.team(ctx)
	if err != nil {
		return err
	}
	var data org.UpdateTeam
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if t, err = api.svc.UpdateTeam(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating team")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *orgApi) destroyTeam(ctx echo.Context) error {
	t, err := api.team(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTeam(ctx.Request().Context(), t.OrgID, t.ID); err != nil {
		return errors.Wrap(err, "deleting team")
	}
	return ctx.NoContent(http.StatusNoContent)
}
