// Package html writes the markup shared by the engines.
package html

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag has no closing tag.
func IsVoid(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// Attributes merges element options into one attribute set. Class and style
// entries are joined into their attributes.
func Attributes(attrs map[string]any, class []string, style map[string]string) templ.Attributes {
	out := templ.Attributes{}
	for k, v := range attrs {
		out[k] = v
	}

	if len(class) > 0 {
		all := class
		if existing, ok := out["class"].(string); ok && existing != "" {
			all = append([]string{existing}, class...)
		}
		out["class"] = strings.Join(all, " ")
	}

	if len(style) > 0 {
		keys := make([]string, 0, len(style))
		for k := range style {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+":"+style[k])
		}
		out["style"] = strings.Join(parts, ";")
	}
	return out
}

// OpenTag writes the opening tag with attributes sorted by name. true
// booleans render as bare attributes; false and nil values are omitted.
func OpenTag(w io.Writer, tag string, attrs templ.Attributes) error {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(tag)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := attrs[k].(type) {
		case nil:
		case bool:
			if v {
				sb.WriteString(" ")
				sb.WriteString(templ.EscapeString(k))
			}
		default:
			sb.WriteString(" ")
			sb.WriteString(templ.EscapeString(k))
			sb.WriteString(`="`)
			sb.WriteString(templ.EscapeString(fmt.Sprint(v)))
			sb.WriteString(`"`)
		}
	}
	sb.WriteString(">")

	_, err := io.WriteString(w, sb.String())
	return err
}

// CloseTag writes the closing tag unless tag is void.
func CloseTag(w io.Writer, tag string) error {
	if IsVoid(tag) {
		return nil
	}
	_, err := io.WriteString(w, "</"+tag+">")
	return err
}

// Content writes the textContent or innerHTML dom prop, reporting whether
// one was set.
func Content(w io.Writer, domProps map[string]any) (bool, error) {
	if v, ok := domProps["innerHTML"]; ok {
		_, err := io.WriteString(w, fmt.Sprint(v))
		return true, err
	}
	if v, ok := domProps["textContent"]; ok {
		_, err := io.WriteString(w, templ.EscapeString(fmt.Sprint(v)))
		return true, err
	}
	return false, nil
}
