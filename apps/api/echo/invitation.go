package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/invitation"
	"github.com/trezcool/kipimo/core/user"
)

type invitationApi struct {
	svc invitation.Service
}

func registerInvitationAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc invitation.Service) {
	api := invitationApi{svc: svc}

	ig := g.Group("/invitations", authed...)
	ig.GET("", api.queryPending)
	ig.POST("", api.create)
	ig.DELETE("/:id", api.revoke)

	// un-authed endpoints
	jg := g.Group("/join")
	jg.GET("/:token", api.preview)
	jg.POST("/:token", api.accept)
}

func (api *invitationApi) queryPending(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	invs, err := api.svc.QueryPending(ctx.Request().Context(), actor.OrgID)
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	if invs == nil {
		invs = []invitation.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *invitationApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data invitation.NewInvitation
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	inv, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating invitation")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *invitationApi) revoke(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Revoke(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking invitation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *invitationApi) preview(ctx echo.Context) error {
	p, err := api.svc.Preview(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *invitationApi) accept(ctx echo.Context) error {
	var data invitation.AcceptInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AcceptInvitation")
	}
	usr, err := api.svc.Accept(ctx.Request().Context(), ctx.Param("token"), data)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, JoinResponse{User: usr, Token: token})
}

type JoinResponse struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}
