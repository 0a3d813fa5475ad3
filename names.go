package rttiscanner

import (
	"slices"
	"strings"
)

// Undecorate turns an MSVC RTTI type name such as ".?AVWidget@ui@@" into
// "ui::Widget". Names it does not understand (templates, anonymous
// namespaces, back references) are returned unchanged.
func Undecorate(name string) string {
	var body string
	switch {
	case strings.HasPrefix(name, ".?AV"):
		body = name[len(".?AV"):]
	case strings.HasPrefix(name, ".?AU"):
		body = name[len(".?AU"):]
	default:
		return name
	}

	body, ok := strings.CutSuffix(body, "@@")
	if !ok || body == "" || strings.ContainsAny(body, "?$") {
		return name
	}

	parts := strings.Split(body, "@")
	if slices.Contains(parts, "") {
		return name
	}
	slices.Reverse(parts)
	return strings.Join(parts, "::")
}
