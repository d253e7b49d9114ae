package index

import "time"

// temporalIndex is consumed only by an external temporal-versioning
// sidecar; it's built and kept
// consistent the same way a property index is, just keyed on a declared
// timestamp path instead of an arbitrary property tuple.
type temporalIndex struct {
	path        string
	byTimestamp map[int64]map[string]struct{}
	byID        map[string]map[int64]struct{}
}

func newTemporalIndex(path string) *temporalIndex {
	return &temporalIndex{
		path:        path,
		byTimestamp: make(map[int64]map[string]struct{}),
		byID:        make(map[string]map[int64]struct{}),
	}
}

func (t *temporalIndex) index(id string, entity map[string]any) {
	t.remove(id)
	v, ok := lookupPath(entity, t.path)
	if !ok {
		return
	}
	ts, ok := toUnix(v)
	if !ok {
		return
	}
	if t.byTimestamp[ts] == nil {
		t.byTimestamp[ts] = make(map[string]struct{})
	}
	t.byTimestamp[ts][id] = struct{}{}
	if t.byID[id] == nil {
		t.byID[id] = make(map[int64]struct{})
	}
	t.byID[id][ts] = struct{}{}
}

func (t *temporalIndex) remove(id string) {
	for ts := range t.byID[id] {
		delete(t.byTimestamp[ts], id)
		if len(t.byTimestamp[ts]) == 0 {
			delete(t.byTimestamp, ts)
		}
	}
	delete(t.byID, id)
}

func toUnix(v any) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Unix(), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
