package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/report"
)

type reportApi struct {
	svc    report.Service
	orgSvc org.Service
}

func registerReportAPI(g *echo.Group, svc report.Service, orgSvc org.Service) {
	api := reportApi{svc: svc, orgSvc: orgSvc}

	rg := g.Group("/reports")
	rg.GET("/summary", api.summary)
	rg.GET("/export", api.export)
	rg.POST("/export/email", api.exportByEmail)
}

func (api *reportApi) summary(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	period, err := report.CleanPeriod(ctx.QueryParam("period"))
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), actor.OrgID, period)
	if err != nil {
		return errors.Wrap(err, "summarizing objectives")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *reportApi) export(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	period, err := report.CleanPeriod(ctx.QueryParam("period"))
	if err != nil {
		return err
	}
	format, err := report.CleanFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	o, err := api.orgSvc.GetByID(ctx.Request().Context(), actor.OrgID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}

	var buf bytes.Buffer
	if err = api.svc.Export(ctx.Request().Context(), o.ID, period, format, &buf); err != nil {
		return errors.Wrap(err, "exporting objectives")
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", report.Filename(o.Slug, period, format)),
	)
	return ctx.Blob(http.StatusOK, report.ContentType(format), buf.Bytes())
}

type ExportByEmailRequest struct {
	Period string `json:"period"`
	Format string `json:"format"`
}

func (api *reportApi) exportByEmail(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data ExportByEmailRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExportByEmailRequest")
	}
	if err = api.svc.ExportByEmail(ctx.Request().Context(), actor, data.Period, data.Format); err != nil {
		return errors.Wrap(err, "sending export")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The export will arrive in your inbox shortly."})
}
