package sandbox

import (
	"fmt"
	gostrings "strings"

	"go.starlark.net/starlark"
)

func builtinUpper(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	return starlark.String(gostrings.ToUpper(s)), nil
}

func builtinLower(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	return starlark.String(gostrings.ToLower(s)), nil
}

func builtinSplit(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, sep string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s, "sep", &sep); err != nil {
		return nil, err
	}
	parts := gostrings.Split(s, sep)
	values := make([]starlark.Value, len(parts))
	for i, p := range parts {
		values[i] = starlark.String(p)
	}
	return starlark.NewList(values), nil
}

// builtinSum mirrors Python's sum(iterable, start=0), which Starlark's core
// builtin set omits; several allowlisted scripts (notably the
// sum-of-a-range scenario) rely on it.
func builtinSum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}
	iter := iterable.Iterate()
	defer iter.Done()
	total := start
	var item starlark.Value
	for iter.Next(&item) {
		sum, err := starlark.Binary(starlark.PLUS, total, item)
		if err != nil {
			return nil, err
		}
		total = sum
	}
	return total, nil
}

func builtinJoin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sep string
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "sep", &sep, "items", &iterable); err != nil {
		return nil, err
	}
	iter := iterable.Iterate()
	defer iter.Done()
	var parts []string
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("strings.join: item %v is not a string", item)
		}
		parts = append(parts, s)
	}
	return starlark.String(gostrings.Join(parts, sep)), nil
}
