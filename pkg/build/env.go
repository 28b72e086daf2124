package build

import (
	"os"
	"sort"
	"strings"
)

// Env is a mutable copy of the process environment used for the build.
type Env map[string]string

// NewEnv captures the current process environment.
func NewEnv() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Sanitize strips variables that interfere with an isolated build and pins
// PATH to the system directories so homebrew or local installs cannot leak
// their headers and libraries into the compile.
func (e Env) Sanitize() {
	for _, k := range []string{"CFLAGS", "CPPFLAGS", "LDFLAGS", "PKG_CONFIG_PATH"} {
		delete(e, k)
	}
	e["HOMEBREW_NO_AUTO_UPDATE"] = "1"
	e["PATH"] = "/usr/bin:/bin:/usr/sbin:/sbin"
}

// List renders the environment in the KEY=VALUE form expected by os/exec,
// sorted for stable command logging.
func (e Env) List() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
