package ring

import "encoding/binary"

// frameHeaderSize is the uint32 length prefix every frame carries.
const frameHeaderSize = 4

// align rounds n up to the next 8-byte boundary, matching the atom
// package's own alignment so a framed atom's payload can be decoded
// in place without re-copying to fix alignment (spec §4.7, §9).
func align(n int) int { return (n + 7) &^ 7 }

// WriteFrame writes a length-prefixed, 8-byte-aligned frame carrying
// payload (typically one encoded atom). Never blocks; returns ErrFull
// if there isn't room (spec §4.7/§5).
func (b *Buffer) WriteFrame(payload []byte) error {
	total := align(frameHeaderSize + len(payload))
	frame := make([]byte, total)
	binary.LittleEndian.PutUint32(frame[:frameHeaderSize], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	return b.Write(frame)
}

// PeekFrameLen inspects the next frame's declared payload length
// without consuming anything, returning (0, false) if no complete
// frame header is available yet.
func (b *Buffer) PeekFrameLen() (int, bool) {
	hdr := make([]byte, frameHeaderSize)
	n, err := b.Peek(hdr)
	if err != nil || n < frameHeaderSize {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(hdr)), true
}

// ReadFrame reads one complete frame's payload into a freshly
// allocated slice, advancing past its alignment padding. Returns
// ErrEmpty if no complete frame is currently buffered.
func (b *Buffer) ReadFrame() ([]byte, error) {
	payloadLen, ok := b.PeekFrameLen()
	if !ok {
		return nil, ErrEmpty
	}
	total := align(frameHeaderSize + payloadLen)
	if b.Len() < total {
		return nil, ErrEmpty // header arrived but payload hasn't fully landed yet
	}
	raw := make([]byte, total)
	if _, err := b.Read(raw); err != nil {
		return nil, err
	}
	return raw[frameHeaderSize : frameHeaderSize+payloadLen], nil
}
