package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type authApi struct {
	usrSvc user.Service
	orgSvc org.Service
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, usrSvc user.Service, orgSvc org.Service, limiter *loginLimiter) {
	api := authApi{usrSvc: usrSvc, orgSvc: orgSvc}

	// un-authed endpoints
	g.POST("/signup", api.signup, limiter.middleware())
	ag := g.Group("/auth")
	ag.POST("/login", api.login, limiter.middleware())
	ag.POST("/password-reset", api.resetPassword, limiter.middleware())
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, authed...)
}

func (api *authApi) signup(ctx echo.Context) error {
	var data org.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Registration")
	}
	nu, err := data.Validate(ctx.Request().Context(), api.usrSvc)
	if err != nil {
		return err
	}

	o, usr, err := api.orgSvc.Register(ctx.Request().Context(), data.OrgName, nu)
	if err != nil {
		return errors.Wrap(err, "registering organization")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{Organization: o, User: usr, Token: token})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}

	if err := api.usrSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if err := api.usrSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

type userApi struct {
	svc user.Service
}

func registerUserAPI(g *echo.Group, svc user.Service) {
	api := userApi{svc: svc}

	g.GET("/me", api.me)
	g.PUT("/me", api.updateMe)

	ug := g.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.create, requireRoles(user.RoleAdmin))
	ug.GET("/roles", api.queryRoles)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
	ug.DELETE("/:id", api.destroy, requireRoles(user.RoleAdmin))
}

// Handlers

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.svc); err != nil {
		return err
	}
	// role, activity & email are managed by admins
	if data.IsPrivileged(usr) {
		return errHttpForbidden
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.NewUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err = data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}
	// actor cannot set a role > their own
	if !actor.CanGrant(data.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), actor.OrgID, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var params UserQueryParams
	if err = ctx.Bind(&params); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter := params.Filter()
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, user.OrderingFields)

	users, err := api.svc.Query(ctx.Request().Context(), actor.OrgID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.svc.GetOrgUser(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.svc.GetOrgUser(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
	if err != nil {
		return err
	}
	// managers only manage users below them
	if !actor.IsAdmin() && user.RolePriority(usr.Role) >= user.RolePriority(actor.Role) {
		return errHttpForbidden
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.svc); err != nil {
		return err
	}
	// role, activity & email are managed by admins
	if data.IsPrivileged(usr) && !actor.IsAdmin() {
		return errHttpForbidden
	}
	if data.Role != "" && !actor.CanGrant(data.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}
	if data.IsActive != nil && !*data.IsActive && usr.ID == actor.ID {
		return errHttpForbidden
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.svc.GetOrgUser(ctx.Request().Context(), actor.OrgID, ctx.Param("id"))
	if err != nil {
		return err
	}
	// Say No to Suicide! actor cannot delete themselves
	if usr.ID == actor.ID {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), actor.OrgID, usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SignupResponse struct {
		Organization org.Organization `json:"organization"`
		User         user.User        `json:"user"`
		Token        string           `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	UserQueryParams struct {
		Search   string   `query:"search"`
		Roles    []string `query:"role"`
		IsActive string   `query:"is_active"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}

func (p UserQueryParams) Filter() user.QueryFilter {
	filter := user.QueryFilter{Search: p.Search, Roles: p.Roles}
	if active, err := strconv.ParseBool(p.IsActive); err == nil {
		filter.IsActive = &active
	}
	return filter
}
