// Package ptr returns pointers to values for optional fields in API objects.
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T { return &v }
