package policy

import "strings"

// PolicyKey names a policy: an optional namespace (typically a logical
// service) plus a name (typically a method or route). Zero value is the
// empty key.
type PolicyKey struct {
	Namespace string
	Name      string
}

// ParseKey parses "namespace.name" into a PolicyKey. A string with no dot
// becomes a bare Name. Leading/trailing whitespace around each component is
// trimmed. A second dot, and everything after it, is folded into Name, so
// "svc.method.extra" parses as {Namespace: "svc", Name: "method.extra"}.
func ParseKey(s string) PolicyKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return PolicyKey{}
	}

	idx := strings.Index(s, ".")
	if idx < 0 {
		return PolicyKey{Name: s}
	}

	ns := strings.TrimSpace(s[:idx])
	name := strings.TrimSpace(s[idx+1:])
	if ns == "" {
		return PolicyKey{Name: name}
	}
	if name == "" {
		return PolicyKey{Name: ns + "."}
	}
	return PolicyKey{Namespace: ns, Name: name}
}

// String renders the key back as "namespace.name", or just "name"/"namespace"
// when the other half is empty.
func (k PolicyKey) String() string {
	switch {
	case k.Namespace == "" && k.Name == "":
		return ""
	case k.Namespace == "":
		return k.Name
	case k.Name == "":
		return k.Namespace
	default:
		return k.Namespace + "." + k.Name
	}
}
