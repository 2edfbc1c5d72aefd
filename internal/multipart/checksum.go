package multipart

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"hash"
)

// Digest is the MD5 of one part body.
type Digest [md5.Size]byte

// Base64 returns the digest in the encoding S3 expects in Content-MD5.
func (d Digest) Base64() string {
	return base64.StdEncoding.EncodeToString(d[:])
}

func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Checksum accumulates a digest over bytes fed in any number of Update calls.
// It must not be used after Finalize.
type Checksum struct {
	h hash.Hash
}

func NewChecksum() *Checksum {
	return &Checksum{h: md5.New()}
}

func (c *Checksum) Update(p []byte) {
	c.h.Write(p)
}

func (c *Checksum) Finalize() Digest {
	var d Digest
	c.h.Sum(d[:0])
	c.h = nil
	return d
}

// SumPart is the one-shot form of NewChecksum, Update and Finalize.
func SumPart(p []byte) Digest {
	return md5.Sum(p)
}
