// Package cid implements the content identifier primitives this system
// needs: a single hash algorithm (sha2-256), codec 0x71 (dag-cbor), and
// CIDv1 wrap/unwrap. It is a thin, opinionated shell around go-cid so that
// values produced here interoperate with any other IPFS tooling pointed at
// the same block store, while keeping hashing and encoding decisions local
// (see package dagcbor).
package cid

import (
	"errors"

	ipfscid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

const (
	// Codec is the multicodec for dag-cbor.
	Codec = 0x71
	// MultihashCode is sha2-256.
	MultihashCode = 0x12
	// DigestSize is the length in bytes of a sha2-256 digest.
	DigestSize = 32
	// BinarySize is the length of the 36-byte binary CID form:
	// version(1) + codec(1) + hash-fn(1) + length(1) + digest(32).
	BinarySize = 4 + DigestSize
)

var (
	// ErrInvalidDigest is returned when a digest is not exactly DigestSize bytes.
	ErrInvalidDigest = errors.New("cid: digest must be 32 bytes")
	// ErrUnsupported is returned when a parsed CID does not use codec 0x71 / sha2-256.
	ErrUnsupported = errors.New("cid: only CIDv1 dag-cbor/sha2-256 is supported")
)

// Cid is a CIDv1, codec 0x71 (dag-cbor), hash 0x12 (sha2-256) content
// identifier. The zero value is not a valid Cid; use Undef or construct one
// with FromDigest/Parse/FromBytes.
type Cid struct {
	inner ipfscid.Cid
}

// Undef is the zero-value, invalid Cid.
var Undef = Cid{}

// FromDigest wraps a raw 32-byte sha2-256 digest as a CIDv1. It does not
// hash anything further; the caller is expected to have already computed
// the digest (e.g. via dagcbor.EncodeBlock, or directly from an on-chain
// peak value).
func FromDigest(digest []byte) (Cid, error) {
	if len(digest) != DigestSize {
		return Cid{}, ErrInvalidDigest
	}
	hash, err := mh.Encode(digest, MultihashCode)
	if err != nil {
		return Cid{}, err
	}
	return Cid{inner: ipfscid.NewCidV1(Codec, hash)}, nil
}

// Parse decodes the canonical base32 text form ("b...") of a CID.
func Parse(s string) (Cid, error) {
	c, err := ipfscid.Decode(s)
	if err != nil {
		return Cid{}, err
	}
	return wrap(c)
}

// FromBytes decodes the 36-byte binary form (0x01 0x71 0x12 0x20 <digest>).
func FromBytes(b []byte) (Cid, error) {
	c, err := ipfscid.Cast(b)
	if err != nil {
		return Cid{}, err
	}
	return wrap(c)
}

func wrap(c ipfscid.Cid) (Cid, error) {
	if c.Version() != 1 || c.Type() != Codec {
		return Cid{}, ErrUnsupported
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return Cid{}, err
	}
	if decoded.Code != MultihashCode || len(decoded.Digest) != DigestSize {
		return Cid{}, ErrUnsupported
	}
	return Cid{inner: c}, nil
}

// Digest returns the raw 32-byte sha2-256 digest.
func (c Cid) Digest() []byte {
	decoded, err := mh.Decode(c.inner.Hash())
	if err != nil {
		// inner was constructed by this package and is always valid.
		panic(err)
	}
	return decoded.Digest
}

// Bytes returns the 36-byte binary form.
func (c Cid) Bytes() []byte { return c.inner.Bytes() }

// String returns the canonical lowercase base32 text form ("b...").
func (c Cid) String() string { return c.inner.String() }

// Defined reports whether c is a properly constructed, non-zero Cid.
func (c Cid) Defined() bool { return c.inner.Defined() }

// Equals reports digest equality. Two Cids are equal iff their digests match.
func (c Cid) Equals(other Cid) bool { return c.inner.Equals(other.inner) }

// MarshalText and UnmarshalText let Cid participate directly in JSON-keyed
// storage records (see package store) without a bespoke (de)serializer.
func (c Cid) MarshalText() ([]byte, error) {
	if !c.Defined() {
		return nil, nil
	}
	return []byte(c.String()), nil
}

func (c *Cid) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = Undef
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
