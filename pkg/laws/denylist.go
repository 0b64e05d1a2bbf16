package laws

import (
	"reflect"
	"strings"
)

// deniedFields maps normalized field names to the privacy class they violate.
// The classes are fixed: reasons, tags, history markers, location, numeric
// scores, hierarchy markers, cross-domain references, group/cohort
// identifiers. Names are matched after normalization (lowercase, separators
// stripped), so "ReasonCode", "reason_code" and "reason-code" all hit.
var deniedFields = map[string]string{
	// reasons
	"reason":       "reasons",
	"reasons":      "reasons",
	"reasoncode":   "reasons",
	"statusreason": "reasons",

	// tags
	"tag":    "tags",
	"tags":   "tags",
	"label":  "tags",
	"labels": "tags",

	// history markers
	"history":        "history",
	"priorcolor":     "history",
	"previousstatus": "history",
	"changelog":      "history",

	// location
	"location":  "location",
	"latitude":  "location",
	"longitude": "location",
	"geo":       "location",
	"geohash":   "location",
	"place":     "location",

	// numeric scores
	"score":  "scores",
	"scores": "scores",
	"rating": "scores",
	"rank":   "scores",
	"streak": "scores",

	// hierarchy markers
	"hierarchy":    "hierarchy",
	"parentid":     "hierarchy",
	"tier":         "hierarchy",
	"supervisorid": "hierarchy",

	// cross-domain references
	"sponsorid":  "cross-domain",
	"bundleid":   "cross-domain",
	"externalid": "cross-domain",
	"foreignref": "cross-domain",

	// group/cohort identifiers
	"group":    "cohort",
	"groupid":  "cohort",
	"cohort":   "cohort",
	"cohortid": "cohort",
	"teamid":   "cohort",
}

const maxScanDepth = 32

type offender struct {
	name  string
	class string
	path  string
}

// scanPayload walks v recursively (structs, maps, slices, arrays, pointers,
// interfaces) and returns the first denylisted field name it meets, checking
// Go field names, json tag names, and string map keys.
func scanPayload(v reflect.Value, path string, depth int, seen map[uintptr]bool) *offender {
	if depth > maxScanDepth || !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer {
			ptr := v.Pointer()
			if seen[ptr] {
				return nil
			}
			seen[ptr] = true
		}
		return scanPayload(v.Elem(), path, depth+1, seen)

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			fieldPath := joinPath(path, field.Name)
			for _, name := range fieldNames(field) {
				if class, hit := deniedFields[normalizeFieldName(name)]; hit {
					return &offender{name: name, class: class, path: fieldPath}
				}
			}
			if off := scanPayload(v.Field(i), fieldPath, depth+1, seen); off != nil {
				return off
			}
		}

	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			keyPath := path
			if key.Kind() == reflect.String {
				name := key.String()
				keyPath = joinPath(path, name)
				if class, hit := deniedFields[normalizeFieldName(name)]; hit {
					return &offender{name: name, class: class, path: keyPath}
				}
			}
			if off := scanPayload(iter.Value(), keyPath, depth+1, seen); off != nil {
				return off
			}
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if off := scanPayload(v.Index(i), path, depth+1, seen); off != nil {
				return off
			}
		}
	}
	return nil
}

// fieldNames returns the candidate names a struct field exposes: the Go name
// and, when present, the json tag name.
func fieldNames(field reflect.StructField) []string {
	names := []string{field.Name}
	if tag, ok := field.Tag.Lookup("json"); ok {
		tagName, _, _ := strings.Cut(tag, ",")
		if tagName != "" && tagName != "-" {
			names = append(names, tagName)
		}
	}
	return names
}

func normalizeFieldName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, "-", "")
	return name
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
