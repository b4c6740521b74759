package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and $VAR patterns
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}|\$([A-Za-z0-9_]+)`)

// ExpandEnv replaces ${VAR} and $VAR with environment variables. Unset
// variables expand to the empty string.
//
//	"Bearer ${GITHUB_TOKEN}" → "Bearer ghp_abc123..."
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		return os.Getenv(name)
	})
}

// ExpandEnvMap expands all values in a map
func ExpandEnvMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	expanded := make(map[string]string, len(m))
	for key, value := range m {
		expanded[key] = ExpandEnv(value)
	}
	return expanded
}

// Environ merges m, expanded, over the current process environment in the
// KEY=value form used by exec.Cmd.
func Environ(m map[string]string) []string {
	env := os.Environ()
	for key, value := range ExpandEnvMap(m) {
		env = append(env, key+"="+value)
	}
	return env
}
