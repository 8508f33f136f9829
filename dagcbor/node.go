package dagcbor

import (
	"crypto/sha256"
	"fmt"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
)

// Link is a tag-42 IPLD link decoded from a block: a CID embedded as the
// byte string 0x00 followed by the 36-byte binary CID form.
type Link struct {
	Cid dagcid.Cid
}

func linkFromMultibaseBytes(b []byte) (*Link, error) {
	c, err := dagcid.FromBytes(b)
	if err != nil {
		return nil, err
	}
	return &Link{Cid: c}, nil
}

// Node is the tagged union of the three block shapes this system reads or
// writes. The MMR engine only ever produces LeafNode and InnerNode values;
// LinkNode exists because a content-addressed gateway could hand back a
// "self-describing" bare-CID block, and decode must not panic on it.
type Node interface{ isNode() }

// LeafNode is the dag-cbor Bytes shape: a leaf's raw payload.
type LeafNode []byte

func (LeafNode) isNode() {}

// InnerNode is the dag-cbor {"L": link, "R": link} shape produced by every
// MMR merge and bagging step.
type InnerNode struct {
	L dagcid.Cid
	R dagcid.Cid
}

func (InnerNode) isNode() {}

// LinkNode is a bare tag-42 CID value at the top level of a block. It is
// never emitted by this system's encoder; it exists purely so the decoder
// and resolver can reject (or, per spec, transparently recurse through) a
// differently-shaped but syntactically valid block.
type LinkNode struct {
	Cid dagcid.Cid
}

func (LinkNode) isNode() {}

// EncodeLeaf returns the canonical dag-cbor encoding of a leaf payload.
func EncodeLeaf(payload []byte) []byte {
	return EncodeBytes(nil, payload)
}

// encodeLinkValue returns the tag-42 encoding of a single CID: tag(42,
// bytestring(0x00 || cid.Bytes())).
func encodeLinkValue(buf []byte, c dagcid.Cid) []byte {
	buf = EncodeTag(buf, LinkTag)
	payload := make([]byte, 1+dagcid.BinarySize)
	payload[0] = 0x00
	copy(payload[1:], c.Bytes())
	return EncodeBytes(buf, payload)
}

// EncodeInner returns the canonical dag-cbor encoding of an {"L","R"} link
// node. Key order is fixed: "L" then "R", matching the only map shape this
// system ever writes.
func EncodeInner(l, r dagcid.Cid) []byte {
	buf := EncodeMapHeader(nil, 2)
	buf = EncodeText(buf, "L")
	buf = encodeLinkValue(buf, l)
	buf = EncodeText(buf, "R")
	buf = encodeLinkValue(buf, r)
	return buf
}

// HashBlock returns the sha2-256 digest of an encoded block, the system's
// single hash primitive.
func HashBlock(encoded []byte) []byte {
	sum := sha256.Sum256(encoded)
	return sum[:]
}

// EncodeBlock takes an already dag-cbor-encoded block and returns the CID
// over it (sha2-256 of the encoded form, wrapped as CIDv1 dag-cbor)
// together with the same encoded bytes, unchanged.
func EncodeBlock(encoded []byte) (dagcid.Cid, []byte, error) {
	c, err := dagcid.FromDigest(HashBlock(encoded))
	if err != nil {
		return dagcid.Cid{}, nil, err
	}
	return c, encoded, nil
}

// VerifyCid reports whether encoded rehashes to expected.
func VerifyCid(encoded []byte, expected dagcid.Cid) bool {
	c, err := dagcid.FromDigest(HashBlock(encoded))
	if err != nil {
		return false
	}
	return c.Equals(expected)
}

// ErrCidMismatch is returned by VerifyCidChecked when the rehash disagrees.
var ErrCidMismatch = fmt.Errorf("dagcbor: decoded bytes do not rehash to the expected cid")

// VerifyCidChecked is the checked variant of VerifyCid.
func VerifyCidChecked(encoded []byte, expected dagcid.Cid) error {
	if !VerifyCid(encoded, expected) {
		return ErrCidMismatch
	}
	return nil
}

// DecodeNode parses encoded as one of the three recognised block shapes.
// Any other syntactically valid dag-cbor value is rejected.
func DecodeNode(encoded []byte) (Node, error) {
	v, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case []byte:
		return LeafNode(val), nil
	case *Link:
		return LinkNode{Cid: val.Cid}, nil
	case map[string]any:
		lv, ok := val["L"]
		if !ok {
			return nil, fmt.Errorf("%w: link map missing \"L\"", ErrUnsupported)
		}
		rv, ok := val["R"]
		if !ok {
			return nil, fmt.Errorf("%w: link map missing \"R\"", ErrUnsupported)
		}
		ll, ok := lv.(*Link)
		if !ok {
			return nil, fmt.Errorf("%w: \"L\" is not a link", ErrUnsupported)
		}
		rl, ok := rv.(*Link)
		if !ok {
			return nil, fmt.Errorf("%w: \"R\" is not a link", ErrUnsupported)
		}
		return InnerNode{L: ll.Cid, R: rl.Cid}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognised top-level dag-cbor shape", ErrUnsupported)
	}
}

// NullCID is the CID of the dag-cbor encoding of null (0xf6), the constant
// root of an empty MMR.
func NullCID() dagcid.Cid {
	c, err := dagcid.FromDigest(HashBlock(EncodeNull(nil)))
	if err != nil {
		// EncodeNull always yields exactly one byte; hashing it can't fail.
		panic(err)
	}
	return c
}
