package cache

import (
	"sort"
	"strings"
)

// Key prefixes for cached responses.
const (
	PrefixNotes  = "notes"
	PrefixSearch = "search"
)

var keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// TenantPrefix returns the prefix shared by every key of prefix for tenantID.
func TenantPrefix(prefix, tenantID string) string {
	return prefix + ":tenant_id:" + keyEscaper.Replace(tenantID) + ":"
}

// Key builds a deterministic cache key. Parameters are sorted by name and
// appended as name:value; empty values are omitted.
func Key(prefix, tenantID string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+keyEscaper.Replace(params[name]))
	}
	return TenantPrefix(prefix, tenantID) + strings.Join(parts, ":")
}
