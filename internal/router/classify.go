package router

import "bytes"

var (
	nodesKey         = []byte(`"nodes"`)
	relationshipsKey = []byte(`"relationships"`)
)

// Classify inspects the first object key of a payload to decide its shape.
// It is a cheap pre-filter: a recognized shape may still fail to decode.
func Classify(data []byte) Shape {
	rest := skipSpace(data)
	if len(rest) == 0 || rest[0] != '{' {
		return ShapeUnrecognized
	}
	rest = skipSpace(rest[1:])

	switch {
	case bytes.HasPrefix(rest, nodesKey):
		return ShapeNodeUpdate
	case bytes.HasPrefix(rest, relationshipsKey):
		return ShapeRelationshipUpdate
	default:
		return ShapeUnrecognized
	}
}

func skipSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}
