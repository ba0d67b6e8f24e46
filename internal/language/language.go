package language

import "strings"

// Language is a recognition language as configured in transcription.language.
type Language struct {
	Code       string // ISO 639-1 code, or "multi"
	Name       string
	NativeName string
}

// Multi asks the recognizer to follow speakers switching between languages.
var Multi = Language{Code: "multi", Name: "Multilingual", NativeName: "code-switching"}

// Unset is returned for an empty code: the recognizer's default applies.
var Unset = Language{Code: "", Name: "Recognizer default"}

// languages are the streaming languages of the Deepgram nova models.
var languages = []Language{
	{Code: "bg", Name: "Bulgarian", NativeName: "Български"},
	{Code: "ca", Name: "Catalan", NativeName: "Català"},
	{Code: "cs", Name: "Czech", NativeName: "Čeština"},
	{Code: "da", Name: "Danish", NativeName: "Dansk"},
	{Code: "de", Name: "German", NativeName: "Deutsch"},
	{Code: "el", Name: "Greek", NativeName: "Ελληνικά"},
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "es", Name: "Spanish", NativeName: "Español"},
	{Code: "et", Name: "Estonian", NativeName: "Eesti"},
	{Code: "fi", Name: "Finnish", NativeName: "Suomi"},
	{Code: "fr", Name: "French", NativeName: "Français"},
	{Code: "hi", Name: "Hindi", NativeName: "हिन्दी"},
	{Code: "hu", Name: "Hungarian", NativeName: "Magyar"},
	{Code: "id", Name: "Indonesian", NativeName: "Bahasa Indonesia"},
	{Code: "it", Name: "Italian", NativeName: "Italiano"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語"},
	{Code: "ko", Name: "Korean", NativeName: "한국어"},
	{Code: "lt", Name: "Lithuanian", NativeName: "Lietuvių"},
	{Code: "lv", Name: "Latvian", NativeName: "Latviešu"},
	{Code: "ms", Name: "Malay", NativeName: "Bahasa Melayu"},
	{Code: "nl", Name: "Dutch", NativeName: "Nederlands"},
	{Code: "no", Name: "Norwegian", NativeName: "Norsk"},
	{Code: "pl", Name: "Polish", NativeName: "Polski"},
	{Code: "pt", Name: "Portuguese", NativeName: "Português"},
	{Code: "ro", Name: "Romanian", NativeName: "Română"},
	{Code: "ru", Name: "Russian", NativeName: "Русский"},
	{Code: "sk", Name: "Slovak", NativeName: "Slovenčina"},
	{Code: "sv", Name: "Swedish", NativeName: "Svenska"},
	{Code: "th", Name: "Thai", NativeName: "ไทย"},
	{Code: "tr", Name: "Turkish", NativeName: "Türkçe"},
	{Code: "uk", Name: "Ukrainian", NativeName: "Українська"},
	{Code: "vi", Name: "Vietnamese", NativeName: "Tiếng Việt"},
	{Code: "zh", Name: "Chinese", NativeName: "中文"},
}

var codeIndex map[string]Language

func init() {
	codeIndex = make(map[string]Language, len(languages)+2)
	codeIndex[Unset.Code] = Unset
	codeIndex[Multi.Code] = Multi
	for _, lang := range languages {
		codeIndex[lang.Code] = lang
	}
}

// Base strips a region suffix: "en-US" and "en_us" become "en".
func Base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// FromCode looks a code up by its base language. ok is false for unknown codes.
func FromCode(code string) (Language, bool) {
	lang, ok := codeIndex[Base(code)]
	return lang, ok
}

// IsValidCode reports whether code, with or without a region, is accepted.
func IsValidCode(code string) bool {
	_, ok := FromCode(code)
	return ok
}

// Label is the display form used in menus: "Portuguese (pt-BR)".
func Label(code string) string {
	lang, ok := FromCode(code)
	if !ok {
		return code
	}
	if code == "" {
		return lang.Name
	}
	return lang.Name + " (" + code + ")"
}

// List returns the concrete languages, sorted by code, without Multi or Unset.
func List() []Language {
	result := make([]Language, len(languages))
	copy(result, languages)
	return result
}

func Codes() []string {
	codes := make([]string, len(languages))
	for i, lang := range languages {
		codes[i] = lang.Code
	}
	return codes
}
