package ports

// StructuredDecoder turns repaired JSON text into a typed domain result.
// Implemented by the consuming application; it may also remap non-canonical
// field names emitted by specific models.
type StructuredDecoder interface {
	Decode(json string) (any, error)
}
