// Package segment turns an incremental text stream into separator-bounded
// slices. The model answers a turn as one continuous token stream in which a
// separator token marks bubble boundaries; chunk boundaries fall wherever the
// transport cuts them, so the separator itself may arrive split across two
// chunks.
package segment

import "strings"

// Segmenter accumulates chunks into a single buffer and emits every
// separator-complete slice in order. It carries a scan offset across feeds
// instead of re-searching the whole buffer, which keeps long bubbles cheap
// while still catching a separator that straddles a chunk boundary.
//
// A Segmenter drives exactly one stream: after Finish it is drained and must
// not be fed again.
type Segmenter struct {
	sep      string
	buf      string
	scanned  int
	finished bool
}

// New returns a Segmenter splitting on sep.
func New(sep string) *Segmenter {
	if sep == "" {
		panic("segment: empty separator")
	}
	return &Segmenter{sep: sep}
}

// Feed appends chunk to the buffer and returns the segments it completed, in
// order. Text after the last separator stays buffered for the next Feed or
// for Finish.
func (s *Segmenter) Feed(chunk string) []string {
	if s.finished {
		panic("segment: Feed after Finish")
	}
	if chunk == "" {
		return nil
	}
	s.buf += chunk

	var out []string
	for {
		idx := strings.Index(s.buf[s.scanned:], s.sep)
		if idx < 0 {
			// A later separator can still begin inside the last len(sep)-1
			// bytes, so only the prefix before them counts as scanned.
			s.scanned = len(s.buf) - len(s.sep) + 1
			if s.scanned < 0 {
				s.scanned = 0
			}
			return out
		}
		at := s.scanned + idx
		out = append(out, s.buf[:at])
		s.buf = s.buf[at+len(s.sep):]
		s.scanned = 0
	}
}

// Finish returns the trailing remainder, which may be empty, and drains the
// segmenter. Callers decide whether a blank remainder is worth keeping.
func (s *Segmenter) Finish() string {
	if s.finished {
		panic("segment: Finish called twice")
	}
	s.finished = true
	rest := s.buf
	s.buf = ""
	s.scanned = 0
	return rest
}
