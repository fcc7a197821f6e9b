package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// toStarlark converts a plain Go value (as produced by json.Unmarshal, or
// passed via ExecuteParams.ContextOverrides) into its Starlark equivalent.
// Supports the value shapes spec §9 names as needing representation:
// numbers, strings, sequences, mappings.
func toStarlark(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		elems := make([]starlark.Value, 0, len(val))
		for _, e := range val {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, sv)
		}
		return starlark.NewList(elems), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sv, err := toStarlark(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("sandbox: unsupported value type %T", v)
	}
}

// fromStarlark converts a Starlark runtime value back to a plain Go value
// for persistence into a session's opaque state mapping.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return val.String(), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		out := make([]interface{}, 0, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var item starlark.Value
		for iter.Next(&item) {
			converted, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				continue
			}
			converted, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case *starlarkstruct.Struct:
		// Functions and modules are not persisted; struct-shaped builtins
		// (predeclared modules) are dropped when snapshotting globals.
		return nil, errNotPersistable
	default:
		if _, isCallable := v.(starlark.Callable); isCallable {
			return nil, errNotPersistable
		}
		return nil, fmt.Errorf("sandbox: cannot persist value of type %s", v.Type())
	}
}

var errNotPersistable = fmt.Errorf("sandbox: value is not persistable")

// restoreGlobals rebuilds a starlark.StringDict from a session's saved
// state, skipping nothing. Every persisted value round-trips except integers
// outside the int64 range, which were persisted as strings and come back as
// strings.
func restoreGlobals(state map[string]interface{}) (starlark.StringDict, error) {
	globals := make(starlark.StringDict, len(state))
	for k, v := range state {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, err
		}
		globals[k] = sv
	}
	return globals, nil
}

// snapshotGlobals persists top-level bindings produced by a successful
// execution back into a plain Go map, per spec §4.3.e ("persist top-level
// variable bindings back to the session on success"). Predeclared modules
// and callables are skipped rather than erroring, since they are
// re-injected on every run and never meaningfully "session state."
func snapshotGlobals(globals starlark.StringDict) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(globals))
	for k, v := range globals {
		if isPredeclaredName(k) {
			continue
		}
		converted, err := fromStarlark(v)
		if err != nil {
			if err == errNotPersistable {
				continue
			}
			return nil, err
		}
		out[k] = converted
	}
	return out, nil
}

// hashState produces a stable fingerprint of a session's variable mapping
// for the (code, session-state) memoization key (spec §4.3 "Caching").
func hashState(state map[string]interface{}) string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, state[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func syntaxOptions() *starlark.FileOptions {
	return &starlark.FileOptions{
		Set:             false,
		While:           true,
		TopLevelControl: true,
		Recursion:       false,
		GlobalReassign:  true,
	}
}
