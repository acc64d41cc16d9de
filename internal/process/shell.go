package process

import "strings"

// shellMetachars mirrors the teacher's metacharacter set used to decide
// whether a script needs a shell to interpret it (pipes, redirection,
// globbing, etc.) rather than being exec'd directly.
const shellMetachars = "|&;<>(){}$`\"'\\*?[]~"

// needsShell reports whether script contains any character that only a
// shell would interpret meaningfully.
func needsShell(script string) bool {
	return strings.ContainsAny(script, shellMetachars)
}

// commandLine resolves the argv the child should exec: either the script
// run directly with its args, or "/bin/sh -c <script args...>" when the
// script string itself needs shell interpretation.
func commandLine(script string, args []string) (path string, argv []string) {
	if needsShell(script) {
		full := script
		for _, a := range args {
			full += " " + a
		}
		return "/bin/sh", []string{"-c", full}
	}
	return script, args
}
