// Package render turns match results and replay frames into display models
// and HTML.
package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"agentgames/internal/jsonx"
	"agentgames/internal/result"
	"agentgames/internal/stats"
)

// Columns with a dedicated display. They are left out of the extra columns.
const (
	colWins        = "wins"
	colLosses      = "losses"
	colDraws       = "draws"
	colGamesPlayed = "games_played"
)

var consumed = []string{colWins, colLosses, colDraws, colGamesPlayed, "total_points", "total"}

// TableOptions controls presentation of a result table.
type TableOptions struct {
	HighlightSelf    bool
	Self             string
	InitiallyVisible bool
}

// TableView is a ranked result table ready for display.
type TableView struct {
	Game        string   `json:"game,omitempty"`
	Simulations string   `json:"simulations"`
	Visible     bool     `json:"visible"`
	HasRecord   bool     `json:"hasRecord"`
	Columns     []string `json:"columns,omitempty"`
	Rows        []Row    `json:"rows"`
}

// Row is one participant of a TableView.
type Row struct {
	Rank    int      `json:"rank"`
	Ordinal string   `json:"ordinal"`
	Name    string   `json:"name"`
	Self    bool     `json:"self,omitempty"`
	Wins    string   `json:"wins,omitempty"`
	Losses  string   `json:"losses,omitempty"`
	Draws   string   `json:"draws,omitempty"`
	WinRate string   `json:"winRate,omitempty"`
	Extra   []string `json:"extra,omitempty"`
	Points  float64  `json:"points"`
	Total   string   `json:"total"`
}

// Table ranks the participants of res by total points. It returns nil when
// the result carries no totals.
func Table(res *result.MatchResult, opts TableOptions) *TableView {
	if res == nil || len(res.TotalPoints) == 0 {
		return nil
	}
	wins, hasWins := res.Column(colWins)
	losses, _ := res.Column(colLosses)
	draws, _ := res.Column(colDraws)
	played, hasPlayed := res.Column(colGamesPlayed)
	extra := stats.ProjectColumns(res.Table, consumed...)

	tv := &TableView{
		Game:        res.Game,
		Simulations: humanize.Comma(int64(res.NumSimulations)),
		Visible:     opts.InitiallyVisible,
		HasRecord:   hasWins,
	}
	for _, col := range extra {
		tv.Columns = append(tv.Columns, columnLabel(col.Key))
	}

	for _, s := range stats.Rank(res.TotalPoints) {
		row := Row{
			Rank:    s.Rank,
			Ordinal: humanize.Ordinal(s.Rank),
			Name:    s.Name,
			Self:    opts.HighlightSelf && opts.Self != "" && opts.Self == s.Name,
			Points:  s.Points,
			Total:   humanize.Commaf(s.Points),
		}
		if hasWins {
			w, l, d := value(wins, s.Name), value(losses, s.Name), value(draws, s.Name)
			total := w + l + d
			if hasPlayed {
				total = value(played, s.Name)
			}
			row.Wins = humanize.Commaf(w)
			row.Losses = humanize.Commaf(l)
			row.Draws = humanize.Commaf(d)
			row.WinRate = stats.WinRate(w, total)
		}
		for _, col := range extra {
			cell := "-"
			if v, ok := col.Value.Get(s.Name); ok {
				cell = humanize.Commaf(jsonx.Finite(v.Float()))
			}
			row.Extra = append(row.Extra, cell)
		}
		tv.Rows = append(tv.Rows, row)
	}
	return tv
}

func value(col result.Scores, name string) float64 {
	v, _ := col.Get(name)
	return jsonx.Finite(v.Float())
}

// columnLabel turns a statistic key like "damage_dealt" into "Damage Dealt".
func columnLabel(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
