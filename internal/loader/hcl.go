package loader

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/mission"
	"github.com/zclconf/go-cty/cty"
)

// hclRoot decodes the top level of a mission file.
type hclRoot struct {
	Missions []*hclMission `hcl:"mission,block"`
	Remain   hcl.Body      `hcl:",remain"`
}

type hclMission struct {
	Name        string     `hcl:"name,label"`
	Version     string     `hcl:"version"`
	Description *string    `hcl:"description,optional"`
	Config      *hclConfig `hcl:"config,block"`
	Steps       []*hclStep `hcl:"step,block"`
	Remain      hcl.Body   `hcl:",remain"`
}

type hclConfig struct {
	MaxParallelSteps *int  `hcl:"max_parallel_steps,optional"`
	TimeoutSeconds   *int  `hcl:"timeout_seconds,optional"`
	FailFast         *bool `hcl:"fail_fast,optional"`
	AuditEnabled     *bool `hcl:"audit_enabled,optional"`
}

type hclStep struct {
	ID              string         `hcl:"id,label"`
	Name            *string        `hcl:"name,optional"`
	Type            string         `hcl:"type"`
	DependsOn       []string       `hcl:"depends_on,optional"`
	TimeoutSeconds  *int           `hcl:"timeout_seconds,optional"`
	ContinueOnError *bool          `hcl:"continue_on_error,optional"`
	Condition       *string        `hcl:"condition,optional"`
	Parameters      hcl.Expression `hcl:"parameters,optional"`
}

// parseHCL decodes exactly one mission block. Parameter expressions may
// reference environment variables as env.NAME.
func parseHCL(ctx context.Context, data []byte, filename string) (*mission.Mission, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}
	if len(root.Missions) != 1 {
		return nil, fmt.Errorf("expected exactly one mission block, found %d", len(root.Missions))
	}
	hm := root.Missions[0]

	m := &mission.Mission{
		Version: hm.Version,
		Name:    hm.Name,
	}
	if hm.Description != nil {
		m.Description = *hm.Description
	}
	if c := hm.Config; c != nil {
		m.Config = &mission.Config{
			MaxParallelSteps: c.MaxParallelSteps,
			TimeoutSeconds:   c.TimeoutSeconds,
			FailFast:         c.FailFast,
			AuditEnabled:     c.AuditEnabled,
		}
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{"env": envObject()}}
	for _, hs := range hm.Steps {
		s := mission.Step{
			ID:              hs.ID,
			Type:            mission.StepType(hs.Type),
			DependsOn:       hs.DependsOn,
			TimeoutSeconds:  hs.TimeoutSeconds,
			ContinueOnError: hs.ContinueOnError,
		}
		if hs.Name != nil {
			s.Name = *hs.Name
		}
		if hs.Condition != nil {
			s.Condition = *hs.Condition
		}
		params, err := decodeParameters(hs.Parameters, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("step %q parameters: %w", hs.ID, err)
		}
		s.Parameters = params
		m.Steps = append(m.Steps, s)
	}

	logger.Debug("Decoded HCL mission.", "mission", m.Name, "steps", len(m.Steps))
	return m, nil
}

func decodeParameters(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("must be an object, got %s", val.Type().FriendlyName())
	}
	native, err := ctyToNative(val)
	if err != nil {
		return nil, err
	}
	params, _ := native.(map[string]any)
	return params, nil
}

func envObject() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vars)
}

// ctyToNative converts a cty.Value to plain Go values. Whole numbers become
// int64, other numbers float64.
func ctyToNative(val cty.Value) (any, error) {
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			nv, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = nv
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			nv, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %s", ty.FriendlyName())
	}
}
