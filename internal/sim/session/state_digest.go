package session

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"execdisorder/internal/sim/resources"
)

// StateDigest hashes every determinism-relevant field in a fixed
// order. Two sessions with the same seed and call sequence must agree
// on it every tick; it is the cheap oracle the determinism tests and
// the playtest driver compare.
func (s *Session) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, int64(s.day))
	digestWriteI64(h, &tmp, int64(s.dayTick))
	digestWriteI64(h, &tmp, int64(s.decisions))
	digestWriteI64(h, &tmp, int64(s.randomEvents))
	digestWriteF64(h, &tmp, s.chaos)
	h.Write([]byte{byte(s.phase), boolByte(s.over)})

	for _, k := range resources.Kinds {
		digestWriteF64(h, &tmp, s.ledger.Get(k))
	}

	digestWriteF64(h, &tmp, s.machine.Level())
	h.Write([]byte{byte(s.machine.Phase())})
	for _, ev := range s.machine.ActiveEvents() {
		digestWriteString(h, &tmp, ev.ID)
		digestWriteString(h, &tmp, ev.Kind)
		digestWriteF64(h, &tmp, ev.Severity)
		digestWriteF64(h, &tmp, ev.Remaining)
		h.Write([]byte{boolByte(ev.Resolved)})
	}
	digestWriteU64(h, &tmp, s.machine.NextEventNum())

	digestWriteF64(h, &tmp, s.economy.Points())
	digestWriteF64(h, &tmp, s.economy.Tokens())
	for _, id := range s.economy.QueuedIDs() {
		digestWriteString(h, &tmp, id)
	}

	for _, id := range s.deck.DrawIDs() {
		digestWriteString(h, &tmp, id)
	}
	for _, id := range s.deck.DiscardIDs() {
		digestWriteString(h, &tmp, id)
	}
	digestWriteString(h, &tmp, s.deck.CurrentID())
	for _, id := range s.deck.PlayedIDs() {
		digestWriteString(h, &tmp, id)
	}

	loyalties := s.roster.Loyalties()
	ids := make([]string, 0, len(loyalties))
	for id := range loyalties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		digestWriteString(h, &tmp, id)
		digestWriteI64(h, &tmp, int64(loyalties[id]))
	}
	for _, id := range s.roster.Inactive() {
		digestWriteString(h, &tmp, id)
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
