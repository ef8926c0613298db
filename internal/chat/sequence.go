package chat

import "fmt"

// sequence generates message ids. Ids are zero-padded so that lexical order
// matches generation order.
type sequence struct {
	n uint64
}

func (s *sequence) next() string {
	s.n++
	return fmt.Sprintf("%020d", s.n)
}
