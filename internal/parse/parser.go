// Package parse turns fetched stats pages into schema-shaped records.
//
// Tables are located by their structural markers (table#passing for season
// totals, table#stats and table#advanced_splits on splits pages). A missing
// marker is a ParseError, never a silent partial result; a bad row only
// loses that row.
package parse

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/albapepper/pfr-ingest/internal/fetch"
	"github.com/albapepper/pfr-ingest/internal/pfr"
)

// ParseError reports an expected page structure that was absent.
type ParseError struct {
	Table  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse table %q: %s", e.Table, e.Reason)
}

// totalsColumns maps season-total data-stat attributes to schema fields.
// Unknown columns on the page are ignored; columns here that are absent
// from a row leave the field unset.
var totalsColumns = map[string]string{
	"age":                      "age",
	"g":                        "g",
	"games":                    "g",
	"gs":                       "gs",
	"games_started":            "gs",
	"pass_cmp":                 "cmp",
	"pass_att":                 "att",
	"pass_cmp_perc":            "cmp_pct",
	"pass_yds":                 "yds",
	"pass_td":                  "td",
	"pass_td_perc":             "td_pct",
	"pass_int":                 "int",
	"pass_int_perc":            "int_pct",
	"pass_first_down":          "first_downs",
	"pass_success_perc":        "succ_pct",
	"pass_long":                "lng",
	"pass_yds_per_att":         "y_a",
	"pass_adj_yds_per_att":     "ay_a",
	"pass_yds_per_cmp":         "y_c",
	"pass_yds_per_g":           "y_g",
	"pass_rating":              "rate",
	"qbr":                      "qbr",
	"pass_sacked":              "sk",
	"sacked":                   "sk",
	"pass_sacked_yds":          "sk_yds",
	"sacked_yds":               "sk_yds",
	"pass_sacked_perc":         "sk_pct",
	"sacked_perc":              "sk_pct",
	"pass_net_yds_per_att":     "ny_a",
	"net_yds_per_pass_att":     "ny_a",
	"pass_adj_net_yds_per_att": "any_a",
	"adj_net_yds_per_pass_att": "any_a",
	"comebacks":                "four_qc",
	"gwd":                      "gwd",
}

// splitColumns maps splits-table data-stat attributes to schema fields.
// Shared by the basic and advanced tables; each contributes the columns it
// actually has.
var splitColumns = map[string]string{
	"g":                    "g",
	"wins":                 "w",
	"losses":               "l",
	"ties":                 "t",
	"pass_cmp":             "cmp",
	"pass_att":             "att",
	"pass_inc":             "inc",
	"pass_cmp_perc":        "cmp_pct",
	"pass_yds":             "yds",
	"pass_td":              "td",
	"pass_int":             "int",
	"pass_rating":          "rate",
	"pass_first_down":      "first_downs",
	"pass_sacked":          "sk",
	"pass_sacked_yds":      "sk_yds",
	"pass_yds_per_att":     "y_a",
	"pass_adj_yds_per_att": "ay_a",
	"pass_att_per_g":       "a_g",
	"pass_yds_per_g":       "y_g",
	"rush_att":             "rush_att",
	"rush_yds":             "rush_yds",
	"rush_yds_per_att":     "rush_y_a",
	"rush_td":              "rush_td",
	"rush_att_per_g":       "rush_a_g",
	"rush_yds_per_g":       "rush_y_g",
	"all_td":               "total_td",
	"scoring":              "pts",
	"points":               "pts",
	"fumbles":              "fmb",
	"fumbles_lost":         "fl",
	"fumbles_forced":       "ff",
	"fumbles_rec":          "fr",
	"fumbles_rec_yds":      "fr_yds",
	"fumbles_rec_td":       "fr_td",
}

// Parser converts fetched pages into StatRecords.
type Parser struct {
	logger *slog.Logger
}

// New creates a parser.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// TotalsOptions supplies row context the page itself may lack: the season
// index page has no year column, and a player's own page has no profile
// link column.
type TotalsOptions struct {
	Season     int
	PlayerRef  string
	PlayerName string
}

// SeasonTotals parses the passing table into one record per row. Works on
// both the league season index page and a player's profile page.
func (p *Parser) SeasonTotals(page *fetch.Page, opts TotalsOptions) ([]pfr.StatRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &ParseError{Table: "passing", Reason: fmt.Sprintf("invalid HTML: %v", err)}
	}

	table := doc.Find("table#passing").First()
	if table.Length() == 0 {
		return nil, &ParseError{Table: "passing", Reason: "table not found"}
	}
	if table.Find(`thead [data-stat="pass_att"]`).Length() == 0 {
		return nil, &ParseError{Table: "passing", Reason: "expected header row missing"}
	}

	var records []pfr.StatRecord
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("thead") || row.HasClass("partial_table") {
			return
		}
		rec, ok := p.totalsRow(row, opts)
		if ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

func (p *Parser) totalsRow(row *goquery.Selection, opts TotalsOptions) (pfr.StatRecord, bool) {
	rec := pfr.StatRecord{
		PlayerRef:  opts.PlayerRef,
		PlayerName: opts.PlayerName,
		Season:     opts.Season,
	}

	// Player profile pages key rows by year; the season index page keys
	// them by player link.
	if yearCell := row.Find(`[data-stat="year_id"]`).First(); yearCell.Length() > 0 {
		year, ok := parseSeasonYear(yearCell.Text())
		if !ok {
			return rec, false // "Missed season" and other non-stat rows
		}
		rec.Season = year
	}

	playerCell := row.Find(`td[data-stat="player"], td[data-stat="name_display"]`).First()
	if playerCell.Length() > 0 {
		link := playerCell.Find("a").First()
		href, _ := link.Attr("href")
		ref := pfr.ExtractPlayerRef(href)
		if ref == "" {
			p.logger.Warn("row skipped: no player ref in profile link", "href", href)
			return rec, false
		}
		rec.PlayerRef = ref
		rec.PlayerName = strings.TrimSpace(link.Text())
	}
	if rec.PlayerRef == "" {
		return rec, false
	}

	teamCell := row.Find(`td[data-stat="team"], td[data-stat="team_name_abbr"]`).First()
	rec.Team = pfr.NormalizeTeam(teamCell.Text())
	rec.Position = strings.ToUpper(strings.TrimSpace(row.Find(`td[data-stat="pos"]`).First().Text()))

	if w, l, t, ok := parseRecord(row.Find(`td[data-stat="qb_rec"]`).First().Text()); ok {
		rec.Set("w", float64(w))
		rec.Set("l", float64(l))
		rec.Set("t", float64(t))
	}

	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		stat, _ := cell.Attr("data-stat")
		field, known := totalsColumns[stat]
		if !known {
			return
		}
		if v, present := parseCell(cell.Text()); present {
			rec.Set(field, v)
		}
	})

	// The site publishes completions and attempts but not incompletions.
	if _, has := rec.Get("inc"); !has {
		if cmp, ok1 := rec.Get("cmp"); ok1 {
			if att, ok2 := rec.Get("att"); ok2 {
				rec.Set("inc", att-cmp)
			}
		}
	}
	return rec, true
}

// Splits parses a player splits page. The basic splits table (table#stats)
// is the structural marker and must be present; the advanced table
// (table#advanced_splits) is merged in when the site publishes it for that
// season.
func (p *Parser) Splits(page *fetch.Page, playerRef, playerName string, season int) ([]pfr.StatRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &ParseError{Table: "stats", Reason: fmt.Sprintf("invalid HTML: %v", err)}
	}

	basic := doc.Find("table#stats").First()
	if basic.Length() == 0 {
		return nil, &ParseError{Table: "stats", Reason: "splits table not found"}
	}
	if basic.Find(`thead [data-stat="pass_att"]`).Length() == 0 {
		return nil, &ParseError{Table: "stats", Reason: "expected header row missing"}
	}

	var records []pfr.StatRecord
	index := make(map[string]int) // (splitType, splitValue) -> records position

	collect := func(table *goquery.Selection) {
		currentType := ""
		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			if row.HasClass("thead") {
				currentType = ""
				return
			}
			splitType := strings.TrimSpace(row.Find(`[data-stat="split_id"]`).First().Text())
			splitValue := strings.TrimSpace(row.Find(`[data-stat="split_value"]`).First().Text())
			if splitType != "" {
				currentType = splitType
			} else {
				// Rowspan continuation: the category cell only appears on
				// the first row of each split group.
				splitType = currentType
			}
			if splitType == "" || splitValue == "" {
				return
			}

			key := splitType + "\x00" + splitValue
			pos, exists := index[key]
			if !exists {
				records = append(records, pfr.StatRecord{
					PlayerRef:  playerRef,
					PlayerName: playerName,
					Season:     season,
					SplitType:  splitType,
					SplitValue: splitValue,
				})
				pos = len(records) - 1
				index[key] = pos
			}
			rec := &records[pos]

			row.Find("td").Each(func(_ int, cell *goquery.Selection) {
				stat, _ := cell.Attr("data-stat")
				field, known := splitColumns[stat]
				if !known {
					return
				}
				if v, present := parseCell(cell.Text()); present {
					rec.Set(field, v)
				}
			})
			if _, has := rec.Get("inc"); !has {
				if cmp, ok1 := rec.Get("cmp"); ok1 {
					if att, ok2 := rec.Get("att"); ok2 {
						rec.Set("inc", att-cmp)
					}
				}
			}
		})
	}

	collect(basic)
	if advanced := doc.Find("table#advanced_splits").First(); advanced.Length() > 0 {
		collect(advanced)
	} else {
		p.logger.Debug("no advanced splits table on page", "player", playerRef, "season", season)
	}

	return records, nil
}
