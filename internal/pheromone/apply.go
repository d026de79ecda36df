package pheromone

import "encoding/json"

// applyChanges merges field_changes onto current by round-tripping through
// JSON: decode current to a generic field map, overlay changes, re-encode,
// and decode back into T. This is what lets update() accept an untyped
// map[string]any of field_changes while keeping the three pheromone maps
// themselves strongly typed end to end.
func applyChanges[T any](current T, changes map[string]any) (T, error) {
	var zero T
	fields, err := toFields(current)
	if err != nil {
		return zero, err
	}
	for k, v := range changes {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var next T
	if err := json.Unmarshal(merged, &next); err != nil {
		return zero, err
	}
	return next, nil
}
