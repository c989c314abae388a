package rules

// DeepMerge returns a new document holding target overlaid with source.
// Keys whose values are objects on both sides are merged recursively.
// Any other source value, sequences included, replaces the target value
// wholesale. Neither input is modified.
func DeepMerge(target, source map[string]any) map[string]any {
	out := cloneMap(target)
	if out == nil {
		out = make(map[string]any, len(source))
	}
	for key, sv := range source {
		sm, sok := sv.(map[string]any)
		tm, tok := out[key].(map[string]any)
		if sok && tok {
			out[key] = DeepMerge(tm, sm)
			continue
		}
		out[key] = cloneValue(sv)
	}
	return out
}

// MergeRules overlays override onto base. Content is deep merged when
// both sides carry it; name, description and version take the override
// value when it is non-empty. The category always comes from base.
func MergeRules(base, override *RuleSet) RuleSet {
	switch {
	case base == nil && override == nil:
		return RuleSet{}
	case base == nil:
		return override.clone()
	case override == nil:
		return base.clone()
	}

	merged := base.clone()
	if base.Content != nil && override.Content != nil {
		merged.Content = DeepMerge(base.Content, override.Content)
	}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	return merged
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
