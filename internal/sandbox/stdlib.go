package sandbox

import (
	"regexp"
	"strings"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// allowedModules is the whitelist spec §4.3 requires: "pure standard
// utilities (serialization of text formats, text processing, math, time,
// collections, pure-path manipulation, URL parsing)." Each name here is
// both a load()-able module name and a predeclared global, since Starlark
// has no ambient import resolution of its own — every module the sandbox
// exposes is one this package injects explicitly.
var allowedModules = []string{"json", "math", "time", "strings", "collections", "path", "url"}

func allowedModulesList() []string {
	out := make([]string, len(allowedModules))
	copy(out, allowedModules)
	return out
}

var loadCallRe = regexp.MustCompile(`load\(\s*["']([^"']+)["']`)

// checkImports statically scans code for load() calls before any execution
// begins, per spec §4.3: "Code is parsed, rejected if it contains syntactic
// references to blocked identifiers... no execution begins." A runtime
// Load callback is not enough on its own, since the spec requires rejection
// prior to executing any part of the script.
func checkImports(code string) *SecurityViolation {
	for _, match := range loadCallRe.FindAllStringSubmatch(code, -1) {
		module := strings.TrimSuffix(match[1], ".star")
		if !isAllowedModule(module) {
			return &SecurityViolation{Module: module, Allowed: allowedModulesList()}
		}
	}
	return nil
}

func isAllowedModule(name string) bool {
	for _, m := range allowedModules {
		if m == name {
			return true
		}
	}
	return false
}

// isPredeclaredName reports whether k is one of the modules injectPredeclared
// adds, so snapshotGlobals doesn't try to persist a module object as session
// state.
func isPredeclaredName(k string) bool {
	return isAllowedModule(k)
}

// injectPredeclared adds the allowlisted modules to globals as predeclared
// bindings, the Starlark-native equivalent of "these are the only things
// importable." strings.star's module is synthesized locally since
// go.starlark.net does not ship one; json/math/time come directly from the
// standard go.starlark.net/lib/* packages.
func injectPredeclared(globals starlark.StringDict) {
	globals["json"] = json.Module
	globals["math"] = math.Module
	globals["time"] = startime.Module
	globals["strings"] = stringsModule
	globals["collections"] = collectionsModule
	globals["path"] = pathModule
	globals["url"] = urlModule
	globals["sum"] = starlark.NewBuiltin("sum", builtinSum)
}

// stringsModule exposes a minimal, pure text-processing surface — the
// "text processing" entry in the spec's allowlist — as a starlarkstruct
// module, the same namespacing primitive go.starlark.net's own lib/json and
// lib/math use.
var stringsModule = &starlarkstruct.Module{
	Name: "strings",
	Members: starlark.StringDict{
		"upper": starlark.NewBuiltin("strings.upper", builtinUpper),
		"lower": starlark.NewBuiltin("strings.lower", builtinLower),
		"split": starlark.NewBuiltin("strings.split", builtinSplit),
		"join":  starlark.NewBuiltin("strings.join", builtinJoin),
	},
}

// collectionsModule covers the "collections" entry in the spec's allowlist.
// Starlark's core list/dict/tuple already cover the primitive container
// types, so this only adds the handful of aggregate operations scripts
// reach for that core Starlark omits.
var collectionsModule = &starlarkstruct.Module{
	Name: "collections",
	Members: starlark.StringDict{
		"count":  starlark.NewBuiltin("collections.count", builtinCollectionsCount),
		"unique": starlark.NewBuiltin("collections.unique", builtinCollectionsUnique),
	},
}

// pathModule covers "pure-path manipulation": string-level path arithmetic
// with no filesystem access, built on the standard library's path package
// (the slash-only, OS-independent sibling of path/filepath).
var pathModule = &starlarkstruct.Module{
	Name: "path",
	Members: starlark.StringDict{
		"join":      starlark.NewBuiltin("path.join", builtinPathJoin),
		"dirname":   starlark.NewBuiltin("path.dirname", builtinPathDirname),
		"basename":  starlark.NewBuiltin("path.basename", builtinPathBasename),
		"splitext":  starlark.NewBuiltin("path.splitext", builtinPathSplitext),
		"normalize": starlark.NewBuiltin("path.normalize", builtinPathNormalize),
	},
}

// urlModule covers "URL parsing": parse-only, built on net/url.Parse, which
// performs no network I/O.
var urlModule = &starlarkstruct.Module{
	Name: "url",
	Members: starlark.StringDict{
		"parse": starlark.NewBuiltin("url.parse", builtinURLParse),
	},
}
