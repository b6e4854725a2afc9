package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", contractx.ErrValidation, key)
	}
	return s, nil
}

// intArg accepts the shapes a decoded JSON argument may take.
func intArg(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
	}
}

// DecodeArgs parses a model tool-call argument string.
func DecodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: tool arguments are not a json object: %v", contractx.ErrValidation, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
