package pdf

import (
	"context"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	"github.com/smallbiznis/referrals/internal/config"
)

const dateLayout = "2006-01-02"

type PDFProvider struct {
	settings *config.ReferralConfigHolder
}

var (
	headerText = props.Text{Style: fontstyle.Bold, Size: 9}
	cellText   = props.Text{Size: 9}
	moneyText  = props.Text{Size: 9, Align: align.Right}
)

// RenderStatement lays out a partner's month-to-date commission statement.
func (p *PDFProvider) RenderStatement(ctx context.Context, statement commissiondomain.Statement) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := config.DefaultReferralConfig()
	if p.settings != nil {
		settings = p.settings.Get()
	}
	loc := settings.Location()
	summary := statement.Summary

	cfg := marotoconfig.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, settings.Statement.Title, props.Text{Size: 18, Style: fontstyle.Bold}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New(statement.Partner.DisplayName(), props.Text{Style: fontstyle.Bold}),
			text.New(statement.Partner.Email, props.Text{Top: 5}),
			text.New("Partner ID: "+statement.Partner.ID.String(), props.Text{Top: 10, Size: 8}),
		),
		col.New(6).Add(
			text.New("Period: "+formatDate(summary.PeriodStart, loc)+" to "+formatDate(summary.PeriodEnd, loc), props.Text{Align: align.Right}),
		),
	)

	m.AddRow(8, text.NewCol(12, "Direct referrals", props.Text{Style: fontstyle.Bold, Size: 11}))
	m.AddRow(7,
		text.NewCol(5, "Customer", headerText),
		text.NewCol(5, "Email", headerText),
		text.NewCol(2, "Commission", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(1, line.NewCol(12))
	for _, direct := range summary.Direct {
		m.AddRow(6,
			text.NewCol(5, direct.FullName, cellText),
			text.NewCol(5, direct.Email, cellText),
			text.NewCol(2, direct.Total.StringFixed(2), moneyText),
		)
	}

	m.AddRow(8, col.New(12))
	m.AddRow(8, text.NewCol(12, "Ledger entries", props.Text{Style: fontstyle.Bold, Size: 11}))
	m.AddRow(7,
		text.NewCol(3, "Date", headerText),
		text.NewCol(3, "Customer", headerText),
		text.NewCol(1, "Level", headerText),
		text.NewCol(2, "Fee", headerText),
		text.NewCol(1, "Rate", headerText),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(1, line.NewCol(12))
	for _, entry := range statement.Entries {
		m.AddRow(6,
			text.NewCol(3, formatDate(entry.CreatedAt, loc), cellText),
			text.NewCol(3, entry.CustomerID.String(), cellText),
			text.NewCol(1, strconv.Itoa(entry.Level), cellText),
			text.NewCol(2, string(entry.FeeType), cellText),
			text.NewCol(1, entry.Rate.StringFixed(2), cellText),
			text.NewCol(2, entry.Amount.StringFixed(2), moneyText),
		)
	}

	m.AddRow(8, col.New(12))
	totalRow(m, "Direct", summary.DirectTotal.StringFixed(2), false)
	totalRow(m, "Indirect", summary.IndirectTotal.StringFixed(2), false)
	totalRow(m, "Total", summary.Total.StringFixed(2), true)

	if settings.Statement.Footer != "" {
		m.AddRow(12, text.NewCol(12, settings.Statement.Footer, props.Text{Size: 8, Top: 4}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func totalRow(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(7,
		col.New(8),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(dateLayout)
}
