package icmp

import (
	"math"
	"os"
)

// SeqPool hands out (ident, seq) pairs for outgoing echo requests and
// maps replies back to the value registered at send time. Seq is only
// 16 bits; when it wraps the ident is bumped so in-flight pairs stay
// unique.
type SeqPool struct {
	ident        map[uint16]map[uint16]interface{}
	currentSeq   uint16
	currentIdent uint16
}

func NewSeqPool(ident uint16) *SeqPool {
	if ident <= 0 {
		ident = uint16(os.Getpid() & 0xFFFF)
	}
	return &SeqPool{
		ident:        map[uint16]map[uint16]interface{}{},
		currentIdent: ident,
	}
}

// Apply registers v and returns the (ident, seq) pair to send with.
func (s *SeqPool) Apply(v interface{}) (uint16, uint16) {
	seq := s.currentSeq
	if s.currentSeq >= math.MaxUint16 {
		s.currentSeq = 0
		s.currentIdent += 1
	} else {
		s.currentSeq += 1
	}
	i, ok := s.ident[s.currentIdent]
	if !ok {
		i = map[uint16]interface{}{}
		s.ident[s.currentIdent] = i
	}
	i[seq] = v
	return s.currentIdent, seq
}

// Free releases the pair and returns the registered value, nil if the
// pair was never applied or already freed.
func (s *SeqPool) Free(ident uint16, seq uint16) interface{} {
	i, ok := s.ident[ident]
	if !ok {
		return nil
	}
	v, ok := i[seq]
	if ok {
		delete(i, seq)
	}
	return v
}
