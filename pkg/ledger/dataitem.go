package ledger

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	signatureTypeArweave = 1
	signatureLength      = 512
	targetLength         = 32
	anchorLength         = 32

	maxTags        = 128
	maxTagNameLen  = 1024
	maxTagValueLen = 3072
)

var errMalformedItem = errors.New("malformed data item")

// DataItem is an unsigned ANS-104 data item.
type DataItem struct {
	// Target is the base64url process id the item is addressed to.
	Target string
	// Anchor is an optional 32-byte string that makes otherwise identical
	// items distinct.
	Anchor string
	Tags   Tags
	Data   []byte
}

// SignedItem is the binary form ready for upload.
type SignedItem struct {
	ID  string
	Raw []byte
}

// SignItem serializes and signs item.
func (s *Signer) SignItem(item DataItem) (*SignedItem, error) {
	target, err := decodeTarget(item.Target)
	if err != nil {
		return nil, err
	}
	if item.Anchor != "" && len(item.Anchor) != anchorLength {
		return nil, fmt.Errorf("anchor must be %d bytes, got %d", anchorLength, len(item.Anchor))
	}
	tagBytes, err := encodeTags(item.Tags)
	if err != nil {
		return nil, err
	}

	message := signatureMessage(s.owner, target, []byte(item.Anchor), tagBytes, item.Data)
	sig, err := s.sign(message)
	if err != nil {
		return nil, fmt.Errorf("signing data item: %w", err)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	var buf bytes.Buffer
	buf.Grow(2 + signatureLength + ownerLength + 2 + targetLength + anchorLength + 16 + len(tagBytes) + len(item.Data))

	binary.Write(&buf, binary.LittleEndian, uint16(signatureTypeArweave))
	buf.Write(sig)
	buf.Write(s.owner)
	writeOptional(&buf, target)
	writeOptional(&buf, []byte(item.Anchor))
	binary.Write(&buf, binary.LittleEndian, uint64(len(item.Tags)))
	binary.Write(&buf, binary.LittleEndian, uint64(len(tagBytes)))
	buf.Write(tagBytes)
	buf.Write(item.Data)

	return &SignedItem{ID: itemID(sig), Raw: buf.Bytes()}, nil
}

// VerifyItem parses raw, checks its signature and returns the item with its
// id.
func VerifyItem(raw []byte) (*DataItem, string, error) {
	r := bytes.NewReader(raw)

	var sigType uint16
	if err := binary.Read(r, binary.LittleEndian, &sigType); err != nil {
		return nil, "", errMalformedItem
	}
	if sigType != signatureTypeArweave {
		return nil, "", fmt.Errorf("%w: signature type %d", errMalformedItem, sigType)
	}
	sig := make([]byte, signatureLength)
	owner := make([]byte, ownerLength)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, "", errMalformedItem
	}
	if _, err := io.ReadFull(r, owner); err != nil {
		return nil, "", errMalformedItem
	}
	target, err := readOptional(r, targetLength)
	if err != nil {
		return nil, "", err
	}
	anchor, err := readOptional(r, anchorLength)
	if err != nil {
		return nil, "", err
	}

	var numTags, numTagBytes uint64
	if err := binary.Read(r, binary.LittleEndian, &numTags); err != nil {
		return nil, "", errMalformedItem
	}
	if err := binary.Read(r, binary.LittleEndian, &numTagBytes); err != nil {
		return nil, "", errMalformedItem
	}
	if numTagBytes > uint64(r.Len()) {
		return nil, "", errMalformedItem
	}
	tagBytes := make([]byte, numTagBytes)
	if _, err := io.ReadFull(r, tagBytes); err != nil {
		return nil, "", errMalformedItem
	}
	tags, err := decodeTags(tagBytes)
	if err != nil {
		return nil, "", err
	}
	if uint64(len(tags)) != numTags {
		return nil, "", fmt.Errorf("%w: tag count mismatch", errMalformedItem)
	}
	data := make([]byte, r.Len())
	r.Read(data)

	if err := verify(owner, signatureMessage(owner, target, anchor, tagBytes, data), sig); err != nil {
		return nil, "", fmt.Errorf("verifying signature: %w", err)
	}

	item := &DataItem{Anchor: string(anchor), Tags: tags, Data: data}
	if len(target) > 0 {
		item.Target = base64.RawURLEncoding.EncodeToString(target)
	}
	return item, itemID(sig), nil
}

func signatureMessage(owner, target, anchor, tagBytes, data []byte) []byte {
	return deepHash([]any{
		[]byte("dataitem"),
		[]byte("1"),
		[]byte(strconv.Itoa(signatureTypeArweave)),
		owner,
		target,
		anchor,
		tagBytes,
		data,
	})
}

func itemID(sig []byte) string {
	sum := sha256.Sum256(sig)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func decodeTarget(target string) ([]byte, error) {
	if target == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(target)
	if err != nil {
		return nil, fmt.Errorf("decoding target %q: %w", target, err)
	}
	if len(b) != targetLength {
		return nil, fmt.Errorf("target %q must decode to %d bytes", target, targetLength)
	}
	return b, nil
}

func writeOptional(buf *bytes.Buffer, b []byte) {
	if len(b) == 0 {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(b)
}

func readOptional(r *bytes.Reader, n int) ([]byte, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, errMalformedItem
	}
	if present == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errMalformedItem
	}
	return b, nil
}

// deepHash implements the Arweave deep-hash over blobs and nested lists.
func deepHash(chunk any) []byte {
	switch v := chunk.(type) {
	case []byte:
		tag := append([]byte("blob"), strconv.Itoa(len(v))...)
		th := sha512.Sum384(tag)
		dh := sha512.Sum384(v)
		sum := sha512.Sum384(append(th[:], dh[:]...))
		return sum[:]
	case []any:
		tag := append([]byte("list"), strconv.Itoa(len(v))...)
		acc := sha512.Sum384(tag)
		for _, item := range v {
			acc = sha512.Sum384(append(acc[:], deepHash(item)...))
		}
		return acc[:]
	default:
		panic(fmt.Sprintf("deepHash: unsupported chunk %T", chunk))
	}
}

// encodeTags writes tags as an Avro array of {name: bytes, value: bytes}.
func encodeTags(tags Tags) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if len(tags) > maxTags {
		return nil, fmt.Errorf("too many tags: %d > %d", len(tags), maxTags)
	}

	var buf bytes.Buffer
	writeLong(&buf, int64(len(tags)))
	for _, t := range tags {
		if t.Name == "" {
			return nil, errors.New("tag name must not be empty")
		}
		if len(t.Name) > maxTagNameLen {
			return nil, fmt.Errorf("tag name %q too long", t.Name[:32])
		}
		if len(t.Value) > maxTagValueLen {
			return nil, fmt.Errorf("tag %q value too long", t.Name)
		}
		writeLong(&buf, int64(len(t.Name)))
		buf.WriteString(t.Name)
		writeLong(&buf, int64(len(t.Value)))
		buf.WriteString(t.Value)
	}
	writeLong(&buf, 0)
	return buf.Bytes(), nil
}

func decodeTags(b []byte) (Tags, error) {
	if len(b) == 0 {
		return nil, nil
	}
	r := bytes.NewReader(b)
	var tags Tags
	for {
		count, err := binary.ReadVarint(r)
		if err != nil {
			return nil, errMalformedItem
		}
		if count == 0 {
			break
		}
		if count < 0 {
			// A negative block count is followed by the block's byte size.
			count = -count
			if _, err := binary.ReadVarint(r); err != nil {
				return nil, errMalformedItem
			}
		}
		for i := int64(0); i < count; i++ {
			name, err := readAvroBytes(r)
			if err != nil {
				return nil, err
			}
			value, err := readAvroBytes(r)
			if err != nil {
				return nil, err
			}
			tags = append(tags, Tag{Name: string(name), Value: string(value)})
		}
	}
	return tags, nil
}

func readAvroBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadVarint(r)
	if err != nil || n < 0 || n > int64(r.Len()) {
		return nil, errMalformedItem
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errMalformedItem
	}
	return b, nil
}

// writeLong writes an Avro long (zigzag varint).
func writeLong(buf *bytes.Buffer, n int64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutVarint(tmp[:], n)])
}
