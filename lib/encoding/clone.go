package encoding

import "github.com/huandu/go-clone"

// Clone returns a deep copy of v. Maps, slices, pointers and struct fields
// are copied recursively, so mutating the copy never reaches v. Shared and
// cyclic pointers keep their shape in the copy.
func Clone(v any) any {
	if v == nil {
		return nil
	}
	return clone.Slowly(v)
}
