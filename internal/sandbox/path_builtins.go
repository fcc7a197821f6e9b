package sandbox

import (
	"fmt"
	gopath "path"

	"go.starlark.net/starlark"
)

func builtinPathJoin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("path.join: unexpected keyword arguments")
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("path.join: all arguments must be strings")
		}
		parts = append(parts, s)
	}
	return starlark.String(gopath.Join(parts...)), nil
}

func builtinPathDirname(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "p", &p); err != nil {
		return nil, err
	}
	return starlark.String(gopath.Dir(p)), nil
}

func builtinPathBasename(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "p", &p); err != nil {
		return nil, err
	}
	return starlark.String(gopath.Base(p)), nil
}

func builtinPathSplitext(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "p", &p); err != nil {
		return nil, err
	}
	ext := gopath.Ext(p)
	root := p[:len(p)-len(ext)]
	return starlark.Tuple{starlark.String(root), starlark.String(ext)}, nil
}

func builtinPathNormalize(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "p", &p); err != nil {
		return nil, err
	}
	return starlark.String(gopath.Clean(p)), nil
}
