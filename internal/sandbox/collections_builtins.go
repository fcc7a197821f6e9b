package sandbox

import (
	"go.starlark.net/starlark"
)

// builtinCollectionsCount mirrors Python's collections.Counter: tallies each
// hashable value in iterable into a dict of value -> count.
func builtinCollectionsCount(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable); err != nil {
		return nil, err
	}
	counts := starlark.NewDict(8)
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		existing, found, err := counts.Get(item)
		if err != nil {
			return nil, err
		}
		n := int64(0)
		if found {
			if ni, ok := existing.(starlark.Int); ok {
				n, _ = ni.Int64()
			}
		}
		if err := counts.SetKey(item, starlark.MakeInt64(n+1)); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// builtinCollectionsUnique dedupes iterable, preserving first-seen order.
func builtinCollectionsUnique(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable); err != nil {
		return nil, err
	}
	seen := starlark.NewDict(8)
	var out []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		_, found, err := seen.Get(item)
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}
		if err := seen.SetKey(item, starlark.True); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return starlark.NewList(out), nil
}
