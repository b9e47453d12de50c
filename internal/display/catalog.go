package display

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator renders message keys in one language.
type Translator interface {
	Sprintf(key message.Reference, args ...any) string
	// Title capitalizes a word the way the language does at the start of a
	// label.
	Title(s string) string
}

// Supported lists the catalog languages; the first is the fallback.
var Supported = []language.Tag{language.English, language.Spanish}

// Spanish strings keyed by the English text. English uses the keys as is.
var spanish = map[string]string{
	"Today":         "Hoy",
	"Tomorrow":      "Mañana",
	"Not scheduled": "Sin programar",

	"Every day":                  "Todos los días",
	"Weekdays":                   "Entre semana",
	"Weekends":                   "Fines de semana",
	"Every %[1]s":                "Cada %[1]s",
	"Every other %[1]s":          "Cada dos semanas, el %[1]s",
	"Monthly":                    "Cada mes",
	"Monthly on the %[1]s %[2]s": "Cada mes, el %[1]s %[2]s",
	"Monthly on the last %[1]s":  "Cada mes, el último %[1]s",
	"Monthly on day %[1]d":       "Cada mes, el día %[1]d",
	"Every 3 months":             "Cada 3 meses",
	"Every 6 months":             "Cada 6 meses",
	"Every year":                 "Cada año",
	"%[1]s %[2]s, %[3]s":         "%[2]s %[1]s %[3]s",

	"Time for %[1]s":                       "Hora de %[1]s",
	"%[1]s, it's your turn (%[2]s, %[3]s)": "%[1]s, te toca (%[2]s, %[3]s)",
	"Due %[1]s, %[2]s":                     "Vence: %[1]s, %[2]s",

	"first":  "primer",
	"second": "segundo",
	"third":  "tercer",
	"fourth": "cuarto",

	"Sunday":    "domingo",
	"Monday":    "lunes",
	"Tuesday":   "martes",
	"Wednesday": "miércoles",
	"Thursday":  "jueves",
	"Friday":    "viernes",
	"Saturday":  "sábado",

	"Jan": "ene",
	"Feb": "feb",
	"Mar": "mar",
	"Apr": "abr",
	"May": "may",
	"Jun": "jun",
	"Jul": "jul",
	"Aug": "ago",
	"Sep": "sept",
	"Oct": "oct",
	"Nov": "nov",
	"Dec": "dic",
}

// Catalog holds the translations and picks a language for a request.
type Catalog struct {
	cat     catalog.Catalog
	matcher language.Matcher
}

func NewCatalog() (*Catalog, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, es := range spanish {
		if err := b.SetString(language.English, key, key); err != nil {
			return nil, err
		}
		if err := b.SetString(language.Spanish, key, es); err != nil {
			return nil, err
		}
	}
	return &Catalog{cat: b, matcher: language.NewMatcher(Supported)}, nil
}

// For returns a Translator for the best supported match of the given
// language preferences, e.g. "es-MX" or an Accept-Language header.
func (c *Catalog) For(prefs ...string) Translator {
	_, idx := language.MatchStrings(c.matcher, prefs...)
	tag := Supported[idx]
	return &printer{
		Printer: message.NewPrinter(tag, message.Catalog(c.cat)),
		tag:     tag,
	}
}

type printer struct {
	*message.Printer
	tag language.Tag
}

func (p *printer) Sprintf(key message.Reference, args ...any) string {
	return p.Printer.Sprintf(key, args...)
}

func (p *printer) Title(s string) string {
	return cases.Title(p.tag).String(s)
}
