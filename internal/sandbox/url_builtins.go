package sandbox

import (
	"fmt"
	neturl "net/url"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// builtinURLParse exposes net/url.Parse's pure parsing logic — no DNS lookup
// or network access occurs, matching the sandbox's "URL parsing" allowance
// rather than a fetch capability.
func builtinURLParse(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var raw string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &raw); err != nil {
		return nil, err
	}
	parsed, err := neturl.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("url.parse: %v", err)
	}

	query := starlark.NewDict(len(parsed.Query()))
	for k, values := range parsed.Query() {
		if len(values) == 0 {
			continue
		}
		if err := query.SetKey(starlark.String(k), starlark.String(values[0])); err != nil {
			return nil, err
		}
	}

	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"scheme":   starlark.String(parsed.Scheme),
		"host":     starlark.String(parsed.Host),
		"path":     starlark.String(parsed.Path),
		"query":    query,
		"fragment": starlark.String(parsed.Fragment),
	}), nil
}
