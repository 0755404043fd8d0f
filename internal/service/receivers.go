package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rudhramentertainment/RBackend/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeReceivers accepts the shapes clients send for a receiver list:
// a JSON-encoded array string, a comma separated string, or an array whose
// elements may themselves use either string form. The result is trimmed,
// free of empties and deduplicated in first-seen order.
func NormalizeReceivers(raw any) ([]string, error) {
	seen := make(map[string]struct{})
	out := []string{}
	if err := collectReceivers(raw, seen, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectReceivers(raw any, seen map[string]struct{}, out *[]string) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return collectString(v, seen, out)
	case []string:
		for _, s := range v {
			if err := collectString(s, seen, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("%w: receivers must be strings", domain.ErrValidation)
			}
			if err := collectString(s, seen, out); err != nil {
				return err
			}
		}
		return nil
	case json.RawMessage:
		if len(v) == 0 || string(v) == "null" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return fmt.Errorf("%w: malformed receivers", domain.ErrValidation)
		}
		return collectReceivers(decoded, seen, out)
	default:
		return fmt.Errorf("%w: unsupported receivers type %T", domain.ErrValidation, raw)
	}
}

func collectString(s string, seen map[string]struct{}, out *[]string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return fmt.Errorf("%w: malformed receivers", domain.ErrValidation)
		}
		return collectReceivers(arr, seen, out)
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		*out = append(*out, part)
	}
	return nil
}

// ParseIDs converts normalized ids, failing on the first malformed one.
func ParseIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, s := range ids {
		id, err := domain.ParseID(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
