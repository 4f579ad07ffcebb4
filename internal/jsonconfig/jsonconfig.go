/*
Copyright 2026 The Ledger Offload Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package jsonconfig defines a helper type for flat JSON objects used
// to configure the offload engine and its driver adapters. Unlike the
// broker's own config loader, this package works against a single
// already-decoded JSON object; it has no notion of multi-file
// inclusion, since the engine's configuration surface (driver,
// endpoint, region, bucket, credentials) fits in one object.
package jsonconfig

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Obj is a JSON configuration map. Accessors record which keys they
// looked at and any type/presence errors; call Validate once all
// accessors have run to surface unknown keys and collected errors.
type Obj map[string]interface{}

// Parse decodes a flat JSON object into an Obj.
func Parse(data []byte) (Obj, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("jsonconfig: %w", err)
	}
	return Obj(m), nil
}

func (jc Obj) RequiredString(key string) string {
	return jc.string(key, nil)
}

func (jc Obj) OptionalString(key, def string) string {
	return jc.string(key, &def)
}

func (jc Obj) string(key string, def *string) string {
	jc.noteKnownKey(key)
	ei, ok := jc[key]
	if !ok {
		if def != nil {
			return *def
		}
		jc.appendError(fmt.Errorf("missing required config key %q (string)", key))
		return ""
	}
	s, ok := ei.(string)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a string", key))
		return ""
	}
	return s
}

func (jc Obj) RequiredBool(key string) bool {
	return jc.bool(key, nil)
}

func (jc Obj) OptionalBool(key string, def bool) bool {
	return jc.bool(key, &def)
}

func (jc Obj) bool(key string, def *bool) bool {
	jc.noteKnownKey(key)
	ei, ok := jc[key]
	if !ok {
		if def != nil {
			return *def
		}
		jc.appendError(fmt.Errorf("missing required config key %q (boolean)", key))
		return false
	}
	b, ok := ei.(bool)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a boolean", key))
		return false
	}
	return b
}

func (jc Obj) RequiredInt64(key string) int64 {
	return jc.int64(key, nil)
}

func (jc Obj) OptionalInt64(key string, def int64) int64 {
	return jc.int64(key, &def)
}

func (jc Obj) int64(key string, def *int64) int64 {
	jc.noteKnownKey(key)
	ei, ok := jc[key]
	if !ok {
		if def != nil {
			return *def
		}
		jc.appendError(fmt.Errorf("missing required config key %q (integer)", key))
		return 0
	}
	f, ok := ei.(float64)
	if !ok {
		jc.appendError(fmt.Errorf("expected config key %q to be a number", key))
		return 0
	}
	return int64(f)
}

func (jc Obj) noteKnownKey(key string) {
	known, ok := jc["_knownkeys"]
	if !ok {
		known = map[string]bool{}
		jc["_knownkeys"] = known
	}
	known.(map[string]bool)[key] = true
}

func (jc Obj) appendError(err error) {
	if ei, ok := jc["_errors"]; ok {
		jc["_errors"] = append(ei.([]error), err)
	} else {
		jc["_errors"] = []error{err}
	}
}

func (jc Obj) lookForUnknownKeys() {
	known, _ := jc["_knownkeys"].(map[string]bool)
	for k := range jc {
		if known[k] || strings.HasPrefix(k, "_") {
			continue
		}
		jc.appendError(fmt.Errorf("unknown config key %q", k))
	}
}

// Validate reports any missing/malformed/unknown keys accumulated by
// prior accessor calls. Call it once, after all Required*/Optional*
// calls for this Obj have run.
func (jc Obj) Validate() error {
	jc.lookForUnknownKeys()
	ei, ok := jc["_errors"]
	if !ok {
		return nil
	}
	errs := ei.([]error)
	if len(errs) == 1 {
		return errs[0]
	}
	strs := make([]string, len(errs))
	for i, e := range errs {
		strs[i] = e.Error()
	}
	return fmt.Errorf("multiple config errors: %s", strings.Join(strs, "; "))
}
