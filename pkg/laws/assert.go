package laws

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"circles/pkg/domain"
)

// AssertConnectionCeiling checks the per-identity active-connection count
// against MaxActiveConnections.
func AssertConnectionCeiling(activeCount int) error {
	if activeCount > MaxActiveConnections {
		return violated(LawConnectionCeiling,
			fmt.Sprintf("active connections %d exceed ceiling %d", activeCount, MaxActiveConnections),
			map[string]any{"active": activeCount, "ceiling": MaxActiveConnections})
	}
	return nil
}

// AssertTTLBounds checks a signal lifetime against [domain.TTLMin, domain.TTLMax].
func AssertTTLBounds(d time.Duration) error {
	if d < domain.TTLMin || d > domain.TTLMax {
		return violated(LawTTLBounds,
			fmt.Sprintf("ttl %s outside [%s, %s]", d, domain.TTLMin, domain.TTLMax),
			map[string]any{"ttl": d.String()})
	}
	return nil
}

// AssertCleanPayload scans v recursively for denylisted field names, covering
// nested structs, maps, slices, and json tag names. It runs on everything the
// core persists or returns.
func AssertCleanPayload(v any) error {
	off := scanPayload(reflect.ValueOf(v), "", 0, map[uintptr]bool{})
	if off == nil {
		return nil
	}
	return violated(LawPayloadDenylist,
		fmt.Sprintf("field %q carries denylisted %s data", off.name, off.class),
		map[string]any{"field": off.name, "class": off.class, "path": off.path})
}

// viewerPayloadTags is the exact json field set a viewer may ever see.
var viewerPayloadTags = map[string]bool{
	"color":          true,
	"ttl_expires_at": true,
	"scope":          true,
	"schema_version": true,
}

// AssertViewerPayload checks the denylist plus the exact viewer shape: the
// payload must carry precisely color, ttl_expires_at, scope, and
// schema_version, with the fixed scope literal and schema version. Anything
// extra is a contract break, not a feature.
func AssertViewerPayload(v any) error {
	if err := AssertCleanPayload(v); err != nil {
		return err
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return violated(LawPayloadDenylist, "viewer payload must be a struct",
			map[string]any{"kind": rv.Kind().String()})
	}

	rt := rv.Type()
	if rt.NumField() != len(viewerPayloadTags) {
		return violated(LawPayloadDenylist,
			fmt.Sprintf("viewer payload must carry exactly %d fields, has %d", len(viewerPayloadTags), rt.NumField()),
			map[string]any{"fields": rt.NumField()})
	}

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tagName, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if tagName == "" {
			tagName = field.Name
		}
		if !viewerPayloadTags[tagName] {
			return violated(LawPayloadDenylist,
				fmt.Sprintf("viewer payload carries unexpected field %q", tagName),
				map[string]any{"field": tagName})
		}
		if err := assertViewerField(tagName, rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func assertViewerField(tag string, v reflect.Value) error {
	switch tag {
	case "color":
		if v.Kind() != reflect.String || !domain.Color(v.String()).IsValid() {
			return violated(LawPayloadDenylist, "viewer payload color outside enum",
				map[string]any{"color": fmt.Sprint(v.Interface())})
		}
	case "scope":
		if v.Kind() != reflect.String || v.String() != domain.ViewerScopeCircle {
			return violated(LawPayloadDenylist, "viewer payload scope must be the fixed literal",
				map[string]any{"scope": fmt.Sprint(v.Interface())})
		}
	case "schema_version":
		if !v.CanInt() || v.Int() != domain.ViewerSchemaVersion {
			return violated(LawPayloadDenylist, "viewer payload schema version mismatch",
				map[string]any{"schema_version": fmt.Sprint(v.Interface())})
		}
	case "ttl_expires_at":
		if v.Kind() != reflect.String {
			return violated(LawPayloadDenylist, "viewer payload expiry must be a string",
				map[string]any{"ttl_expires_at": fmt.Sprint(v.Interface())})
		}
		if s := v.String(); s != "" {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				return violated(LawPayloadDenylist, "viewer payload expiry is not RFC 3339",
					map[string]any{"ttl_expires_at": s})
			}
		}
	}
	return nil
}

// AssertNotSelf rejects a connection whose two parties are the same identity.
func AssertNotSelf(a, b domain.UserID) error {
	if a == b {
		return violated(LawSelfConnection, "connection parties must differ",
			map[string]any{"user_id": a.String()})
	}
	return nil
}

// AssertStatusKnown checks membership in the closed status enum. Stored bytes
// cross a serialization boundary, so membership is re-checked after loads.
func AssertStatusKnown(s domain.ConnectionStatus) error {
	if !s.IsValid() {
		return violated(LawStatusMembership,
			fmt.Sprintf("status %q not in enum", s),
			map[string]any{"status": s.String()})
	}
	return nil
}

// AssertColorKnown checks membership in the closed color enum, the status
// value a signal carries. Same serialization-boundary rule as
// AssertStatusKnown.
func AssertColorKnown(c domain.Color) error {
	if !c.IsValid() {
		return violated(LawStatusMembership,
			fmt.Sprintf("color %q not in enum", c),
			map[string]any{"color": c.String()})
	}
	return nil
}

// AssertPairSymmetry checks that the two records of a connection pair carry
// the same status.
func AssertPairSymmetry(local, mirror domain.ConnectionStatus) error {
	if local != mirror {
		return violated(LawPairSymmetry,
			fmt.Sprintf("pair status diverged: %s vs %s", local, mirror),
			map[string]any{"local": local.String(), "mirror": mirror.String()})
	}
	return nil
}

// AssertInviteConsumable checks single-use and expiry on an invite token at
// the moment of consumption. Terminal tokens stay inert forever.
func AssertInviteConsumable(used bool, expiresAt, now time.Time) error {
	if used {
		return violated(LawInviteSingleUse, "one-time token already consumed", nil)
	}
	if !now.Before(expiresAt) {
		return violated(LawInviteSingleUse, "token consumed past its expiry",
			map[string]any{"expires_at": expiresAt.UTC().Format(time.RFC3339), "now": now.UTC().Format(time.RFC3339)})
	}
	return nil
}

// AssertStorageKey checks the fixed storage namespace: every persisted key
// carries the StorageNamespace prefix and a non-empty remainder.
func AssertStorageKey(key string) error {
	if !strings.HasPrefix(key, StorageNamespace) || len(key) == len(StorageNamespace) {
		return violated(LawStorageNamespace,
			fmt.Sprintf("key %q outside the %q namespace", key, StorageNamespace),
			map[string]any{"key": key})
	}
	return nil
}

// AssertRevocationComplete checks that after revoking a pair, neither side's
// resolved signal map still carries an entry for it. Both records of a pair
// share one connection id.
func AssertRevocationComplete(
	connID domain.ConnectionID,
	ownerEntries, peerEntries map[domain.ConnectionID]domain.ViewerSignal,
) error {
	if _, ok := ownerEntries[connID]; ok {
		return violated(LawRevocationCompleteness, "owner still resolves a signal for the revoked pair",
			map[string]any{"connection_id": connID.String(), "side": "owner"})
	}
	if _, ok := peerEntries[connID]; ok {
		return violated(LawRevocationCompleteness, "peer still resolves a signal for the revoked pair",
			map[string]any{"connection_id": connID.String(), "side": "peer"})
	}
	return nil
}
