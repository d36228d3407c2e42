package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type serverValue struct {
	SV string `json:".sv"`
}

// ServerTimestamp is a placeholder field value replaced with the write time
// (unix milliseconds) when the value reaches the store.
var ServerTimestamp any = serverValue{SV: "timestamp"}

// prepare turns v into plain JSON data, resolving server values and dropping
// empty maps so that an empty object reads back as absent.
func prepare(v any, now time.Time) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data, err := decodeRaw(raw)
	if err != nil {
		return nil, err
	}
	return resolve(data, now), nil
}

func decodeRaw(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolve(v any, now time.Time) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 && t[".sv"] == "timestamp" {
			return json.Number(strconv.FormatInt(now.UnixMilli(), 10))
		}
		for k, child := range t {
			r := resolve(child, now)
			if r == nil {
				delete(t, k)
				continue
			}
			t[k] = r
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		for i := range t {
			t[i] = resolve(t[i], now)
		}
		return t
	default:
		return v
	}
}

// read returns the value at p: either a slice of the nearest record at or above
// p, or the tree assembled from the records below it.
func read(recs Records, p string) (any, error) {
	segs := segments(p)
	for i := 1; i <= len(segs); i++ {
		prefix := strings.Join(segs[:i], "/")
		raw, ok, err := recs.Load(prefix)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", prefix, err)
		}
		if !ok {
			continue
		}
		doc, err := decodeRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", prefix, err)
		}
		return descend(doc, segs[i:]), nil
	}

	below, err := recs.Scan(p)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p, err)
	}
	if len(below) == 0 {
		return nil, nil
	}
	root := make(map[string]any)
	for full, raw := range below {
		doc, err := decodeRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", full, err)
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(full, p), "/")
		insert(root, segments(rel), doc)
	}
	return root, nil
}

func descend(doc any, segs []string) any {
	for _, s := range segs {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil
		}
		doc = m[s]
	}
	return doc
}

func insert(root map[string]any, segs []string, v any) {
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// write stores prepared value v at p. A nil value deletes. When a record exists
// above p the change is folded into that record.
func write(recs Records, p string, v any) error {
	if p == "" {
		return fmt.Errorf("%w: cannot overwrite the root", ErrInvalidPath)
	}
	segs := segments(p)
	for i := 1; i < len(segs); i++ {
		prefix := strings.Join(segs[:i], "/")
		raw, ok, err := recs.Load(prefix)
		if err != nil {
			return fmt.Errorf("load %s: %w", prefix, err)
		}
		if !ok {
			continue
		}
		doc, err := decodeRaw(raw)
		if err != nil {
			return fmt.Errorf("corrupt record %s: %w", prefix, err)
		}
		doc = setIn(doc, segs[i:], v)
		if doc == nil {
			return recs.Delete(prefix)
		}
		return put(recs, prefix, doc)
	}

	if err := recs.Delete(p); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if v == nil {
		return nil
	}
	return put(recs, p, v)
}

func setIn(doc any, segs []string, v any) any {
	m, ok := doc.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	k := segs[0]
	if len(segs) == 1 {
		if v == nil {
			delete(m, k)
		} else {
			m[k] = v
		}
	} else if child := setIn(m[k], segs[1:], v); child == nil {
		delete(m, k)
	} else {
		m[k] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func put(recs Records, p string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	if err := recs.Put(p, raw); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

// create stores v at p, which read as absent. Inside an existing record the
// value is folded in under that record's lock; otherwise the backend inserts
// a new record and reports a lost race as false.
func create(recs Records, p string, v any) (bool, error) {
	if p == "" {
		return false, fmt.Errorf("%w: cannot overwrite the root", ErrInvalidPath)
	}
	if v == nil {
		return false, nil
	}
	segs := segments(p)
	for i := 1; i < len(segs); i++ {
		prefix := strings.Join(segs[:i], "/")
		_, ok, err := recs.Load(prefix)
		if err != nil {
			return false, fmt.Errorf("load %s: %w", prefix, err)
		}
		if ok {
			return true, write(recs, p, v)
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", p, err)
	}
	created, err := recs.Insert(p, raw)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", p, err)
	}
	return created, nil
}
