package core

import "encoding/binary"

const (
	murmurM = 0x5bd1e995
	murmurR = 24
)

// MurmurHash2A is the incremental variant of MurmurHash2, 32-bit output.
type MurmurHash2A struct {
	hash  uint32
	tail  uint32
	count uint32
	size  uint32
}

func NewMurmurHash2A(seed uint32) *MurmurHash2A {
	return &MurmurHash2A{hash: seed}
}

func murmurMix(h, k uint32) uint32 {
	k *= murmurM
	k ^= k >> murmurR
	k *= murmurM
	h *= murmurM
	h ^= k
	return h
}

func (m *MurmurHash2A) mixTail(data []byte) []byte {
	for len(data) > 0 && (len(data) < 4 || m.count != 0) {
		m.tail |= uint32(data[0]) << (m.count * 8)
		data = data[1:]
		m.count++
		if m.count == 4 {
			m.hash = murmurMix(m.hash, m.tail)
			m.tail = 0
			m.count = 0
		}
	}
	return data
}

func (m *MurmurHash2A) Add(data []byte) {
	m.size += uint32(len(data))
	data = m.mixTail(data)
	for len(data) >= 4 {
		m.hash = murmurMix(m.hash, binary.LittleEndian.Uint32(data))
		data = data[4:]
	}
	m.mixTail(data)
}

func (m *MurmurHash2A) AddUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.Add(b[:])
}

func (m *MurmurHash2A) AddUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.Add(b[:])
}

// Sum32 finalizes the hash. The hasher must not be reused afterwards.
func (m *MurmurHash2A) Sum32() uint32 {
	h := murmurMix(m.hash, m.tail)
	h = murmurMix(h, m.size)
	h ^= h >> 13
	h *= murmurM
	h ^= h >> 15
	return h
}

// HashMurmur2A hashes data in one call.
func HashMurmur2A(data []byte) uint32 {
	m := MurmurHash2A{}
	m.Add(data)
	return m.Sum32()
}
