package resolver

import (
	"regexp"
)

// Lexical import patterns over embedded source. This is a scan, not a parse:
// the goal is to surface every module the source could pull in so the policy
// checker sees the full reachable set.
var importPatterns = []*regexp.Regexp{
	// import x from "mod", import { a, b } from 'mod', import * as x from "mod"
	regexp.MustCompile(`import\s+[^'"]*?from\s*['"]([^'"]+)['"]`),
	// bare import "mod"
	regexp.MustCompile(`import\s*['"]([^'"]+)['"]`),
	// dynamic import("mod")
	regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	// export ... from "mod"
	regexp.MustCompile(`export\s+[^'"]*?from\s*['"]([^'"]+)['"]`),
	// require("mod")
	regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

// ScanImports extracts module specifiers referenced by embedded source text.
// Relative specifiers ("./x", "../x") are skipped: they resolve within the
// embedded module, not to external dependencies.
func ScanImports(source string) []string {
	seen := make(map[string]struct{})
	var specifiers []string

	for _, pattern := range importPatterns {
		for _, match := range pattern.FindAllStringSubmatch(source, -1) {
			spec := match[1]
			if spec == "" || spec[0] == '.' {
				continue
			}
			if _, dup := seen[spec]; dup {
				continue
			}
			seen[spec] = struct{}{}
			specifiers = append(specifiers, spec)
		}
	}
	return specifiers
}
