package pfr

// Kind describes how a stat field behaves when per-team partial seasons are
// combined into one line.
type Kind int

const (
	// KindCount fields sum arithmetically across teams (attempts, yards).
	KindCount Kind = iota
	// KindRate fields are derived from counts and must be recomputed after
	// summing, never averaged (completion %, passer rating).
	KindRate
	// KindMax fields take the maximum across teams (longest pass, age).
	KindMax
)

// Field declares one entry of the stat schema: its aggregation kind,
// whether it is integral, and the range a present value must fall in.
type Field struct {
	Name string
	Kind Kind
	Int  bool
	Min  float64
	Max  float64
}

// Fields is the enumerated stat schema. Every key a parser may emit into
// StatRecord.Stats appears here; unknown source columns are dropped at the
// parse boundary, never stored.
var Fields = map[string]Field{
	"age": {Name: "age", Kind: KindMax, Int: true, Min: 15, Max: 50},
	"g":   {Name: "g", Kind: KindCount, Int: true, Min: 0, Max: 30},
	"gs":  {Name: "gs", Kind: KindCount, Int: true, Min: 0, Max: 30},
	"w":   {Name: "w", Kind: KindCount, Int: true, Min: 0, Max: 30},
	"l":   {Name: "l", Kind: KindCount, Int: true, Min: 0, Max: 30},
	"t":   {Name: "t", Kind: KindCount, Int: true, Min: 0, Max: 30},

	"cmp":         {Name: "cmp", Kind: KindCount, Int: true, Min: 0, Max: 800},
	"att":         {Name: "att", Kind: KindCount, Int: true, Min: 0, Max: 1000},
	"inc":         {Name: "inc", Kind: KindCount, Int: true, Min: 0, Max: 1000},
	"yds":         {Name: "yds", Kind: KindCount, Int: true, Min: -200, Max: 8000},
	"td":          {Name: "td", Kind: KindCount, Int: true, Min: 0, Max: 70},
	"int":         {Name: "int", Kind: KindCount, Int: true, Min: 0, Max: 50},
	"first_downs": {Name: "first_downs", Kind: KindCount, Int: true, Min: 0, Max: 500},
	"lng":         {Name: "lng", Kind: KindMax, Int: true, Min: -50, Max: 110},
	"sk":          {Name: "sk", Kind: KindCount, Int: true, Min: 0, Max: 100},
	"sk_yds":      {Name: "sk_yds", Kind: KindCount, Int: true, Min: 0, Max: 1000},
	"four_qc":     {Name: "four_qc", Kind: KindCount, Int: true, Min: 0, Max: 10},
	"gwd":         {Name: "gwd", Kind: KindCount, Int: true, Min: 0, Max: 12},

	"cmp_pct":  {Name: "cmp_pct", Kind: KindRate, Min: 0, Max: 100},
	"td_pct":   {Name: "td_pct", Kind: KindRate, Min: 0, Max: 100},
	"int_pct":  {Name: "int_pct", Kind: KindRate, Min: 0, Max: 100},
	"succ_pct": {Name: "succ_pct", Kind: KindRate, Min: 0, Max: 100},
	"sk_pct":   {Name: "sk_pct", Kind: KindRate, Min: 0, Max: 100},
	"y_a":      {Name: "y_a", Kind: KindRate, Min: -10, Max: 30},
	"ay_a":     {Name: "ay_a", Kind: KindRate, Min: -20, Max: 30},
	"y_c":      {Name: "y_c", Kind: KindRate, Min: -10, Max: 60},
	"y_g":      {Name: "y_g", Kind: KindRate, Min: -50, Max: 500},
	"a_g":      {Name: "a_g", Kind: KindRate, Min: 0, Max: 80},
	"ny_a":     {Name: "ny_a", Kind: KindRate, Min: -20, Max: 30},
	"any_a":    {Name: "any_a", Kind: KindRate, Min: -20, Max: 30},
	"rate":     {Name: "rate", Kind: KindRate, Min: RatingMin, Max: RatingMax},
	"qbr":      {Name: "qbr", Kind: KindRate, Min: 0, Max: 100},

	"rush_att": {Name: "rush_att", Kind: KindCount, Int: true, Min: 0, Max: 400},
	"rush_yds": {Name: "rush_yds", Kind: KindCount, Int: true, Min: -200, Max: 2500},
	"rush_td":  {Name: "rush_td", Kind: KindCount, Int: true, Min: 0, Max: 40},
	"rush_y_a": {Name: "rush_y_a", Kind: KindRate, Min: -10, Max: 30},
	"rush_a_g": {Name: "rush_a_g", Kind: KindRate, Min: 0, Max: 40},
	"rush_y_g": {Name: "rush_y_g", Kind: KindRate, Min: -50, Max: 250},

	"total_td": {Name: "total_td", Kind: KindCount, Int: true, Min: 0, Max: 80},
	"pts":      {Name: "pts", Kind: KindCount, Int: true, Min: 0, Max: 500},
	"fmb":      {Name: "fmb", Kind: KindCount, Int: true, Min: 0, Max: 40},
	"fl":       {Name: "fl", Kind: KindCount, Int: true, Min: 0, Max: 40},
	"ff":       {Name: "ff", Kind: KindCount, Int: true, Min: 0, Max: 40},
	"fr":       {Name: "fr", Kind: KindCount, Int: true, Min: 0, Max: 40},
	"fr_yds":   {Name: "fr_yds", Kind: KindCount, Int: true, Min: -100, Max: 300},
	"fr_td":    {Name: "fr_td", Kind: KindCount, Int: true, Min: 0, Max: 10},
}

// Passer rating scale bounds.
const (
	RatingMin = 0.0
	RatingMax = 158.3
)

// PasserRating computes the NFL passer rating from counting stats. Each of
// the four components is clamped to [0, 2.375] per the league formula.
func PasserRating(cmp, att, yds, td, ints float64) float64 {
	if att == 0 {
		return 0
	}
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 2.375 {
			return 2.375
		}
		return v
	}
	a := clamp((cmp/att - 0.3) * 5)
	b := clamp((yds/att - 3) * 0.25)
	c := clamp((td / att) * 20)
	d := clamp(2.375 - (ints/att)*25)
	return (a + b + c + d) / 6 * 100
}
