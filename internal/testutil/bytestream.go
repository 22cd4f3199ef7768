package testutil

// ByteStream reads bytes sequentially from a byte slice.
//
// Used by fuzz tests to derive syscall arguments from fuzz input. When the
// stream is exhausted, all reads return zero values, so the same input
// always produces the same operations.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over the given bytes.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextInt returns a value in [0, maxVal) derived from the next byte.
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	return int(s.NextByte()) % maxVal
}

// NextRange returns a value in [lo, hi] derived from the next byte.
func (s *ByteStream) NextRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}

	return lo + s.NextInt(hi-lo+1)
}

// NextBool returns a boolean derived from the next byte.
func (s *ByteStream) NextBool() bool {
	return s.NextByte()&1 == 1
}

// Percent reports whether the next byte falls under rate percent.
func (s *ByteStream) Percent(rate int) bool {
	return s.NextInt(100) < rate
}

// NextPayload returns n printable bytes (a-z), so failing histories stay
// readable.
func (s *ByteStream) NextPayload(n int) []byte {
	out := make([]byte, max(n, 0))
	for i := range out {
		out[i] = 'a' + s.NextByte()%26
	}

	return out
}
