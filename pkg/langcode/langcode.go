// Package langcode maps free-text language names to short language codes.
//
// The catalog exposes languages as display names ("Brazilian Portuguese",
// "Old Church Slavonic") rather than codes. Lookups are total: a name missing
// from the alias table falls back to the first two characters of the
// lowercased input, so callers never have to handle a failed lookup.
package langcode

import "strings"

// nameToCode aliases many display names onto one code.
var nameToCode = map[string]string{
	"english":                "en",
	"spanish":                "es",
	"brazilian portuguese":   "pt",
	"portuguese":             "pt",
	"chinese":                "zh",
	"cantonese chinese":      "zh",
	"dutch":                  "nl",
	"esperanto":              "eo",
	"filipino":               "tg",
	"german":                 "de",
	"japanese":               "jp",
	"malay":                  "ms",
	"polish":                 "pl",
	"acehnese":               "ace",
	"balinese":               "ban",
	"buginese":               "bug",
	"bulgarian":              "bg",
	"czech":                  "cs",
	"faroese":                "fo",
	"western frisian":        "fy",
	"greek":                  "el",
	"ancient greek":          "el",
	"hebrew":                 "he",
	"indonesian":             "id",
	"javanese":               "jv",
	"latvian":                "lt",
	"luxembourgish":          "lb",
	"minangkabau":            "min",
	"nynorsk":                "nn",
	"occitan":                "oc",
	"occitan (languedocien)": "oc",
	"occitan languedocien":   "oc",
	"languedocien":           "oc",
	"oriya":                  "or",
	"pampango":               "pam",
	"slovak":                 "sk",
	"swedish":                "sv",
	"albanian":               "sq",
	"aragonese":              "an",
	"armenian":               "hy",
	"igbo":                   "ig",
	"icelandic":              "is",
	"ido":                    "io",
	"nuosu":                  "ii",
	"sichuan yi":             "ii",
	"arabic":                 "ar",
	"cebuano":                "ceb",
	"bisaya":                 "ceb",
	"church slavonic":        "cu",
	"slavonic":               "cu",
	"old bulgarian":          "cu",
	"church slavic":          "cu",
	"old slavonic":           "cu",
	"old church slavonic":    "cu",
	"chuvash":                "cv",
	"cornish":                "kw",
	"croatian":               "hr",
	"luo":                    "luo",
	"dholuo":                 "luo",
	"galician":               "gl",
	"irish":                  "ga",
	"tagalog":                "tl",
	"wikang tagalog":         "tl",
	"yiddish":                "yi",
}

// codeToName retains one display name per code. Ties between aliases go
// to the alphabetically first name so the mapping is stable.
var codeToName = func() map[string]string {
	m := make(map[string]string, len(nameToCode))
	for name, code := range nameToCode {
		if prev, ok := m[code]; !ok || name < prev {
			m[code] = name
		}
	}
	return m
}()

// Normalize converts a free-text language name to a short code.
// Unknown names yield the first two characters of the lowercased,
// trimmed input.
func Normalize(name string) string {
	lang := strings.ToLower(strings.TrimSpace(name))
	if code, ok := nameToCode[lang]; ok {
		return code
	}
	if len(lang) > 2 {
		return lang[:2]
	}
	return lang
}

// CanonicalName returns a display name for a code, for logging and
// summaries only. Codes outside the table are returned unchanged.
func CanonicalName(code string) string {
	if name, ok := codeToName[code]; ok {
		return name
	}
	return code
}
