package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/user"
)

type okrApi struct {
	svc        okr.Service
	checkinSvc checkin.Service
}

func registerOKRAPI(g *echo.Group, svc okr.Service, checkinSvc checkin.Service) {
	api := okrApi{svc: svc, checkinSvc: checkinSvc}

	og := g.Group("/objectives")
	og.GET("", api.query)
	og.POST("", api.create)
	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update)
	og.DELETE("/:id", api.destroy)
	og.POST("/:id/key-results", api.addKeyResult)

	kg := g.Group("/key-results")
	kg.GET("/:id", api.retrieveKeyResult)
	kg.PUT("/:id", api.updateKeyResult)
	kg.DELETE("/:id", api.destroyKeyResult)
	kg.GET("/:id/checkins", api.queryCheckIns)
	kg.POST("/:id/checkins", api.checkIn)

	g.GET("/checkins", api.queryWeekCheckIns)
}

type ObjectiveQueryParams struct {
	Search   string   `query:"search"`
	OwnerID  string   `query:"owner_id"`
	TeamID   string   `query:"team_id"`
	Period   string   `query:"period"`
	Statuses []string `query:"status"`
}

func (p ObjectiveQueryParams) Filter() okr.QueryFilter {
	return okr.QueryFilter{
		Search:   p.Search,
		OwnerID:  p.OwnerID,
		TeamID:   p.TeamID,
		Period:   p.Period,
		Statuses: p.Statuses,
	}
}

func (api *okrApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var params ObjectiveQueryParams
	if err = ctx.Bind(&params); err != nil {
		return ctx.JSON(http.StatusOK, []okr.Objective{})
	}
	filter := params.Filter()
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, okr.OrderingFields)

	objs, err := api.svc.Query(ctx.Request().Context(), actor.OrgID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying objectives")
	}
	if objs == nil {
		objs = []okr.Objective{}
	}
	return ctx.JSON(http.StatusOK, objs)
}

func (api *okrApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data okr.NewObjective
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	o, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating objective")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *okrApi) objective(ctx echo.Context) (user.User, okr.Objective, error) {
	actor, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, okr.Objective{}, errors.Wrap(err, "getting context user")
	}
	o, err := api.svc.Get(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
	if err != nil {
		return user.User{}, okr.Objective{}, err
	}
	return actor, o, nil
}

func (api *okrApi) retrieve(ctx echo.Context) error {
	_, o, err := api.objective(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *okrApi) update(ctx echo.Context) error {
	actor, o, err := api.objective(ctx)
	if err != nil {
		return err
	}
	var data okr.UpdateObjective
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateObjective")
	}
	if err = data.Validate(o); err != nil {
		return err
	}
	if o, err = api.svc.Update(ctx.Request().Context(), actor, o, data); err != nil {
		return errors.Wrap(err, "updating objective")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *okrApi) destroy(ctx echo.Context) error {
	actor, o, err := api.objective(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, o); err != nil {
		return errors.Wrap(err, "deleting objective")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *okrApi) addKeyResult(ctx echo.Context) error {
	actor, o, err := api.objective(ctx)
	if err != nil {
		return err
	}
	var data okr.NewKeyResult
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	kr, err := api.svc.AddKeyResult(ctx.Request().Context(), actor, o, data)
	if err != nil {
		return errors.Wrap(err, "adding key result")
	}
	return ctx.JSON(http.StatusCreated, kr)
}

func (api *okrApi) keyResult(ctx echo.Context) (user.User, okr.KeyResult, error) {
	actor, err := getContextUser(ctx)
	if err != nil {
		return user.User{}, okr.KeyResult{}, errors.Wrap(err, "getting context user")
	}
	kr, err := api.svc.GetKeyResult(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
	if err != nil {
		return user.User{}, okr.KeyResult{}, err
	}
	return actor, kr, nil
}

func (api *okrApi) retrieveKeyResult(ctx echo.Context) error {
	_, kr, err := api.keyResult(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, kr)
}

func (api *okrApi) updateKeyResult(ctx echo.Context) error {
	actor, kr, err := api.keyResult(ctx)
	if err != nil {
		return err
	}
	var data okr.UpdateKeyResult
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if kr, err = api.svc.UpdateKeyResult(ctx.Request().Context(), actor, kr, data); err != nil {
		return errors.Wrap(err, "updating key result")
	}
	return ctx.JSON(http.StatusOK, kr)
}

func (api *okrApi) destroyKeyResult(ctx echo.Context) error {
	actor, kr, err := api.keyResult(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteKeyResult(ctx.Request().Context(), actor, kr); err != nil {
		return errors.Wrap(err, "deleting key result")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *okrApi) queryCheckIns(ctx echo.Context) error {
	actor, kr, err := api.keyResult(ctx)
	if err != nil {
		return err
	}
	cis, err := api.checkinSvc.QueryByKeyResult(ctx.Request().Context(), actor.OrgID, kr.ID)
	if err != nil {
		return errors.Wrap(err, "querying check-ins")
	}
	if cis == nil {
		cis = []checkin.CheckIn{}
	}
	return ctx.JSON(http.StatusOK, cis)
}

func (api *okrApi) checkIn(ctx echo.Context) error {
	actor, kr, err := api.keyResult(ctx)
	if err != nil {
		return err
	}
	var data checkin.NewCheckIn
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	ci, err := api.checkinSvc.Create(ctx.Request().Context(), actor, kr, data)
	if err != nil {
		return errors.Wrap(err, "checking in")
	}
	return ctx.JSON(http.StatusCreated, ci)
}

// queryWeekCheckIns lists the check-ins of a week ("YYYY-Www"), the current one by default.
func (api *okrApi) queryWeekCheckIns(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	week := ctx.QueryParam("week")
	if week == "" {
		if week, err = api.checkinSvc.CurrentWeek(ctx.Request().Context(), actor.OrgID); err != nil {
			return errors.Wrap(err, "getting current week")
		}
	}
	cis, err := api.checkinSvc.QueryByWeek(ctx.Request().Context(), actor.OrgID, week)
	if err != nil {
		return errors.Wrap(err, "querying check-ins")
	}
	if cis == nil {
		cis = []checkin.CheckIn{}
	}
	return ctx.JSON(http.StatusOK, CheckInsResponse{Week: week, CheckIns: cis})
}

type CheckInsResponse struct {
	Week     string            `json:"week"`
	CheckIns []checkin.CheckIn `json:"checkins"`
}
