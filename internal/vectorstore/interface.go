package vectorstore

// Neighbor is one candidate returned by an ANN search.
// ID is the insertion position of the vector in its index.
type Neighbor struct {
	ID       int
	Distance float32
}

// Index is an append-only approximate nearest neighbor index.
type Index interface {
	// Len returns the number of vectors in the index.
	Len() int
	// Dimensions returns the fixed vector dimension.
	Dimensions() int
	// Search returns up to k neighbors of query, best match first.
	Search(query []float32, k int) ([]Neighbor, error)
	// MarshalBinary serializes the index for persistence.
	MarshalBinary() ([]byte, error)
}
