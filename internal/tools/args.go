package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mitchellh/mapstructure"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// meta carries a tool's name, description and parameter schema.
type meta struct {
	name   string
	desc   string
	params map[string]*schema.ParameterInfo
}

// Name returns the tool name.
func (m meta) Name() string { return m.name }

// Description returns the host-facing description of this tool.
func (m meta) Description() string { return m.desc }

// Info returns the eino tool metadata including the JSON input schema.
func (m meta) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        m.name,
		Desc:        m.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(m.params),
	}, nil
}

// Params returns the parameter schema keyed by name.
func (m meta) Params() map[string]*schema.ParameterInfo { return m.params }

// IsCallbacksEnabled reports that tools emit their own callbacks.
func (m meta) IsCallbacksEnabled() bool { return true }

// GetType names the component for callbacks.
func (m meta) GetType() string { return m.name }

func str(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc}
}

func strReq(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: true}
}

func integer(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Integer, Desc: desc}
}

func number(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Number, Desc: desc}
}

func boolean(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Boolean, Desc: desc}
}

// invoke runs t inside eino tool callbacks and renders its result.
func invoke(ctx context.Context, t Tool, argumentsInJSON string) (out string, err error) {
	ctx = callbacks.EnsureRunInfo(ctx, t.Name(), components.ComponentOfTool)
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: argumentsInJSON})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	res, err := t.Run(ctx, argumentsInJSON)
	if err != nil {
		return "", err
	}
	out, err = res.Render()
	if err != nil {
		return "", err
	}
	callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: out})
	return out, nil
}

// decodeArgs parses argumentsInJSON into out. Blank strings, empty lists
// and [""] are dropped first, so they decode as absent. Scalars are weakly
// typed: "5" fills an int and "true" a bool.
func decodeArgs(name, argumentsInJSON string, out any) error {
	args := map[string]any{}
	if s := strings.TrimSpace(argumentsInJSON); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return fmt.Errorf("%s: %w: invalid input: %v", name, adbpg.ErrInvalidArgument, err)
		}
	}
	normalizeArgs(args)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("%s: decoder: %w", name, err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%s: %w: %v", name, adbpg.ErrInvalidArgument, err)
	}
	return nil
}

// normalizeArgs trims strings in place and deletes absent values.
func normalizeArgs(args map[string]any) {
	for k, v := range args {
		switch val := v.(type) {
		case nil:
			delete(args, k)
		case string:
			if t, ok := adbpg.NormalizeString(val); ok {
				args[k] = t
			} else {
				delete(args, k)
			}
		case []any:
			if len(val) == 0 || (len(val) == 1 && val[0] == "") {
				delete(args, k)
			}
		}
	}
}

// require reports the first empty value among name/value pairs.
func require(tool string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%s: %w: %s is required", tool, adbpg.ErrInvalidArgument, pairs[i])
		}
	}
	return nil
}
