package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success   string
	Error     string
	Warning   string
	Info      string
	Sleeping  string
	ArrowR    string
	Bullet    string
	Expanded  string
	Collapsed string
}

var unicodeSymbols = SymbolSet{
	Success:   "\u2713", // ✓
	Error:     "\u2717", // ✗
	Warning:   "\u26A0", // ⚠
	Info:      "\u25CF", // ●
	Sleeping:  "\u23F8", // ⏸
	ArrowR:    "\u2192", // →
	Bullet:    "\u2022", // •
	Expanded:  "\u25BE", // ▾
	Collapsed: "\u25B8", // ▸
}

var asciiSymbols = SymbolSet{
	Success:   "[OK]",
	Error:     "[ERR]",
	Warning:   "[!]",
	Info:      "[i]",
	Sleeping:  "[zz]",
	ArrowR:    "->",
	Bullet:    "*",
	Expanded:  "v",
	Collapsed: ">",
}

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// HOTPATCH_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("HOTPATCH_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called by init(), and again from tests.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolSleeping = set.Sleeping
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolExpanded = set.Expanded
	SymbolCollapsed = set.Collapsed
}

func init() {
	InitSymbols()
}
