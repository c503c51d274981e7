package executor

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
)

// placeholderRe matches {name} references inside string parameters.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_.\-]+)\}`)

// storeOutput publishes a successful step's output to later steps, both as a
// structured value for conditions and as the <id>_result variable.
func (r *run) storeOutput(stepID string, output any) {
	normalized := normalizeOutput(output)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[stepID] = normalized
	r.vars[stepID+"_result"] = stringify(output)
}

// normalizeOutput converts an output into plain maps, slices, strings,
// float64 and bool so CEL can navigate it.
func normalizeOutput(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}

// snapshot copies the published outputs and variables.
func (r *run) snapshot() (map[string]any, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.outputs), maps.Clone(r.vars)
}

// stringify renders an output as a substitution value. Strings pass through;
// structured values become JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// substituteParams returns a copy of params with {key} placeholders in every
// string replaced by known variables. Unknown placeholders are kept verbatim.
func substituteParams(params map[string]any, vars map[string]string) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out, _ := substitute(params, vars).(map[string]any)
	return out
}

func substitute(v any, vars map[string]string) any {
	switch t := v.(type) {
	case string:
		return substituteString(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = substitute(val, vars)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = substitute(val, vars)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = substituteString(val, vars)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := vars[match[1:len(match)-1]]; ok {
			return val
		}
		return match
	})
}
