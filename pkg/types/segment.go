package types

// Segment is a contiguous run of text inside a chapter attributed to one
// character, produced by the segmenter.
type Segment struct {
	Character string `json:"character"`
	Text      string `json:"text"`
	Index     int    `json:"index"`
}

// Chunk is a synthesis-sized piece of one segment's text.
type Chunk struct {
	SegmentIndex  int    `json:"segment_index"`
	ChunkIndex    int    `json:"chunk_index"`
	Text          string `json:"text"`
	MaxCharsBound int    `json:"max_chars_bound"`
	Character     string `json:"character"`
	Language      string `json:"language"`
}
