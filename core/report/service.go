package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/user"
)

var (
	errInvalidPeriod = errors.New("period must be formatted as YYYY-Qn")
	errInvalidFormat = errors.New("format must be one of csv, json, yaml")

	// NowFunc is used to pick the default period; tests may replace it.
	NowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Service interface {
		// Summary reports on the objectives of orgID for period (default: the current one).
		Summary(ctx context.Context, orgID, period string) (Summary, error)
		// Export writes the objectives of orgID for period with their key results to w.
		Export(ctx context.Context, orgID, period, format string, w io.Writer) error
		// ExportByEmail sends the export as an attachment to actor.
		ExportByEmail(ctx context.Context, actor user.User, period, format string) error
	}

	service struct {
		okrSvc     okr.Service
		checkinSvc checkin.Service
		orgSvc     org.Service
		usrSvc     user.Service
		mailSvc    core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(
	okrSvc okr.Service,
	checkinSvc checkin.Service,
	orgSvc org.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
) Service {
	return &service{
		okrSvc:     okrSvc,
		checkinSvc: checkinSvc,
		orgSvc:     orgSvc,
		usrSvc:     usrSvc,
		mailSvc:    mailSvc,
	}
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv"
	}
}

// Filename returns the name of the export file of an organization.
func Filename(slug, period, format string) string {
	return fmt.Sprintf("%s-okrs-%s.%s", slug, period, format)
}

// CleanPeriod returns the current period when period is empty, and validates it otherwise.
func CleanPeriod(period string) (string, error) {
	period = core.CleanString(period)
	if period == "" {
		return okr.CurrentPeriod(NowFunc()), nil
	}
	if !core.PeriodRegex.MatchString(period) {
		return "", core.NewValidationError(errInvalidPeriod, core.FieldError{Field: "period", Error: errInvalidPeriod.Error()})
	}
	return period, nil
}

// CleanFormat defaults format to csv and validates it.
func CleanFormat(format string) (string, error) {
	format = core.CleanString(format, true /* lower */)
	if format == "" {
		return FormatCSV, nil
	}
	if !core.StringInSlice(format, AllFormats) {
		return "", core.NewValidationError(errInvalidFormat, core.FieldError{Field: "format", Error: errInvalidFormat.Error()})
	}
	return format, nil
}

func (svc *service) objectives(ctx context.Context, orgID, period string) ([]okr.Objective, error) {
	objs, err := svc.okrSvc.Query(ctx, orgID, okr.QueryFilter{Period: period}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
	return objs, errors.Wrap(err, "querying objectives")
}

func (svc *service) names(ctx context.Context, orgID string) (users map[string]string, teams map[string]string, err error) {
	usrs, err := svc.usrSvc.Query(ctx, orgID, user.QueryFilter{}, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying users")
	}
	users = make(map[string]string, len(usrs))
	for _, u := range usrs {
		users[u.ID] = u.Name
	}

	tms, err := svc.orgSvc.QueryTeams(ctx, orgID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying teams")
	}
	teams = make(map[string]string, len(tms))
	for _, t := range tms {
		teams[t.ID] = t.Name
	}
	return users, teams, nil
}

func (svc *service) Summary(ctx context.Context, orgID, period string) (Summary, error) {
	period, err := CleanPeriod(period)
	if err != nil {
		return Summary{}, err
	}
	objs, err := svc.objectives(ctx, orgID, period)
	if err != nil {
		return Summary{}, err
	}
	users, teams, err := svc.names(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}
	week, err := svc.checkinSvc.CurrentWeek(ctx, orgID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "finding current week")
	}
	checked, err := svc.checkinSvc.CheckedIn(ctx, orgID, week)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Period:          period,
		Objectives:      len(objs),
		ByStatus:        make(map[string]int, len(okr.AllStatuses)),
		ByHealth:        make(map[string]int, len(okr.AllHealths)),
		AverageProgress: averageProgress(objs),
		Week:            week,
	}
	for _, s := range okr.AllStatuses {
		sum.ByStatus[s] = 0
	}
	for _, h := range okr.AllHealths {
		sum.ByHealth[h] = 0
	}

	byTeam := make(map[string][]okr.Objective)
	byOwner := make(map[string][]okr.Objective)
	for _, o := range objs {
		sum.ByStatus[o.Status]++
		if o.Health != "" {
			sum.ByHealth[o.Health]++
		}
		sum.KeyResults += len(o.KeyResults)
		if o.Status == okr.StatusActive {
			sum.ActiveKeyResults += len(o.KeyResults)
			for _, kr := range o.KeyResults {
				if checked[kr.ID] {
					sum.CheckedIn++
				}
			}
		}
		if o.TeamID.Valid {
			byTeam[o.TeamID.String] = append(byTeam[o.TeamID.String], o)
		}
		byOwner[o.OwnerID] = append(byOwner[o.OwnerID], o)
	}
	if sum.ActiveKeyResults > 0 {
		sum.CheckInRate = round2(float64(sum.CheckedIn) / float64(sum.ActiveKeyResults) * 100)
	}
	sum.Teams = groups(byTeam, teams)
	sum.Owners = groups(byOwner, users)
	return sum, nil
}

func groups(objsByID map[string][]okr.Objective, names map[string]string) []GroupProgress {
	gps := make([]GroupProgress, 0, len(objsByID))
	for id, objs := range objsByID {
		gps = append(gps, GroupProgress{
			ID:              id,
			Name:            names[id],
			Objectives:      len(objs),
			AverageProgress: averageProgress(objs),
		})
	}
	sort.Slice(gps, func(i, j int) bool {
		if gps[i].Name == gps[j].Name {
			return gps[i].ID < gps[j].ID
		}
		return gps[i].Name < gps[j].Name
	})
	return gps
}

func (svc *service) Export(ctx context.Context, orgID, period, format string, w io.Writer) error {
	period, err := CleanPeriod(period)
	if err != nil {
		return err
	}
	if format, err = CleanFormat(format); err != nil {
		return err
	}

	o, err := svc.orgSvc.GetByID(ctx, orgID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}
	objs, err := svc.objectives(ctx, orgID, period)
	if err != nil {
		return err
	}
	users, teams, err := svc.names(ctx, orgID)
	if err != nil {
		return err
	}
	doc := newExportDocument(o.Name, period, objs, users, teams)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(doc), "encoding json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return errors.Wrap(enc.Close(), "encoding yaml")
	default:
		return writeCSV(w, doc)
	}
}

func newExportDocument(orgName, period string, objs []okr.Objective, users, teams map[string]string) exportDocument {
	doc := exportDocument{
		Organization: orgName,
		Period:       period,
		GeneratedAt:  NowFunc(),
		Objectives:   make([]exportObjective, 0, len(objs)),
	}
	for _, o := range objs {
		eo := exportObjective{
			ID:         o.ID,
			Title:      o.Title,
			Owner:      users[o.OwnerID],
			Team:       teams[o.TeamID.String],
			Status:     o.Status,
			StartDate:  o.StartDate,
			EndDate:    o.EndDate,
			Progress:   o.Progress,
			Health:     o.Health,
			KeyResults: make([]exportKeyResult, 0, len(o.KeyResults)),
		}
		if o.Score.Valid {
			score := o.Score.Float64
			eo.Score = &score
		}
		for _, kr := range o.KeyResults {
			ekr := exportKeyResult{
				ID:           kr.ID,
				Title:        kr.Title,
				Owner:        users[kr.OwnerID],
				MetricType:   kr.MetricType,
				StartValue:   kr.StartValue,
				TargetValue:  kr.TargetValue,
				CurrentValue: kr.CurrentValue,
				Weight:       kr.Weight,
				Progress:     kr.Progress,
			}
			if kr.Confidence.Valid {
				conf := kr.Confidence.Int
				ekr.Confidence = &conf
			}
			eo.KeyResults = append(eo.KeyResults, ekr)
		}
		doc.Objectives = append(doc.Objectives, eo)
	}
	return doc
}

// csvText neutralizes user text that spreadsheets would evaluate as a formula.
func csvText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// writeCSV writes one row per key result; objectives without key results get a single row.
func writeCSV(w io.Writer, doc exportDocument) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	fmtFloat := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for _, o := range doc.Objectives {
		score := ""
		if o.Score != nil {
			score = fmtFloat(*o.Score)
		}
		objCols := []string{
			o.ID, csvText(o.Title), csvText(o.Owner), csvText(o.Team), o.Status,
			o.StartDate.Format("2006-01-02"), o.EndDate.Format("2006-01-02"), fmtFloat(o.Progress), score,
		}
		if len(o.KeyResults) == 0 {
			if err := cw.Write(append(objCols, make([]string, len(csvHeader)-len(objCols))...)); err != nil {
				return errors.Wrap(err, "writing csv row")
			}
			continue
		}
		for _, kr := range o.KeyResults {
			conf := ""
			if kr.Confidence != nil {
				conf = strconv.Itoa(*kr.Confidence)
			}
			row := append(append([]string{}, objCols...),
				kr.ID, csvText(kr.Title), csvText(kr.Owner), kr.MetricType, fmtFloat(kr.StartValue), fmtFloat(kr.TargetValue),
				fmtFloat(kr.CurrentValue), fmtFloat(kr.Weight), fmtFloat(kr.Progress), conf,
			)
			if err := cw.Write(row); err != nil {
				return errors.Wrap(err, "writing csv row")
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func (svc *service) ExportByEmail(ctx context.Context, actor user.User, period, format string) error {
	period, err := CleanPeriod(period)
	if err != nil {
		return err
	}
	if format, err = CleanFormat(format); err != nil {
		return err
	}
	o, err := svc.orgSvc.GetByID(ctx, actor.OrgID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}

	var buf bytes.Buffer
	if err = svc.Export(ctx, actor.OrgID, period, format, &buf); err != nil {
		return err
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: actor.Name, Address: actor.Email}},
		Subject:      fmt.Sprintf("%s OKR export for %s", o.Name, period),
		TemplateName: "report_export",
		TemplateData: map[string]string{
			"Name":   actor.Name,
			"Format": format,
			"Period": period,
		},
	}
	if err = msg.Attach(&buf, Filename(o.Slug, period, format), ContentType(format)); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}
