// Package lang maps AtCoder language labels to source file extensions.
package lang

import "strings"

// extensions maps a language label prefix to its extension. Several labels
// share a leading word ("Java" / "JavaScript"), so the longest matching
// prefix wins.
var extensions = []struct {
	prefix string
	ext    string
}{
	{"Objective-C", ".m"},
	{"Common Lisp", ".lisp"},
	{"TypeScript", ".ts"},
	{"JavaScript", ".js"},
	{"CoffeeScript", ".coffee"},
	{"PowerShell", ".ps1"},
	{"Standard ML", ".sml"},
	{"Visual Basic", ".vb"},
	{"Fortran", ".f90"},
	{"Haskell", ".hs"},
	{"Clojure", ".clj"},
	{"Crystal", ".cr"},
	{"Kotlin", ".kt"},
	{"Python", ".py"},
	{"Cython", ".pyx"},
	{"Racket", ".rkt"},
	{"Scheme", ".scm"},
	{"Pascal", ".pas"},
	{"Elixir", ".ex"},
	{"Erlang", ".erl"},
	{"Prolog", ".pl"},
	{"COBOL", ".cob"},
	{"OCaml", ".ml"},
	{"Julia", ".jl"},
	{"Scala", ".scala"},
	{"Swift", ".swift"},
	{"Perl", ".pl"},
	{"Raku", ".raku"},
	{"Ruby", ".rb"},
	{"Rust", ".rs"},
	{"Java", ".java"},
	{"PyPy", ".py"},
	{"Dart", ".dart"},
	{"Bash", ".sh"},
	{"Lua", ".lua"},
	{"PHP", ".php"},
	{"Nim", ".nim"},
	{"Zig", ".zig"},
	{"Awk", ".awk"},
	{"C++", ".cpp"},
	{"C#", ".cs"},
	{"F#", ".fs"},
	{"Go", ".go"},
	{"C (", ".c"},
	{"D (", ".d"},
	{"V (", ".v"},
}

// Extension returns the file extension (with leading dot) for a language
// label, or "" when no known prefix matches.
func Extension(language string) string {
	best := ""
	bestLen := -1
	for _, e := range extensions {
		if len(e.prefix) > bestLen && strings.HasPrefix(language, e.prefix) {
			best, bestLen = e.ext, len(e.prefix)
		}
	}
	return best
}
