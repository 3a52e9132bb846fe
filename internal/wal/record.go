package wal

import (
	"hash/crc32"

	"github.com/tuannm99/thunder/internal/bx"
)

// RecordType distinguishes the kinds of operations the log replays.
type RecordType uint8

const (
	RecordPut RecordType = iota + 1
	RecordDelete
	RecordTxBegin
	RecordTxCommit
	RecordTxAbort
	RecordCheckpoint
	RecordBucketCreate
	RecordBucketDelete
)

func (t RecordType) String() string {
	switch t {
	case RecordPut:
		return "put"
	case RecordDelete:
		return "delete"
	case RecordTxBegin:
		return "tx_begin"
	case RecordTxCommit:
		return "tx_commit"
	case RecordTxAbort:
		return "tx_abort"
	case RecordCheckpoint:
		return "checkpoint"
	case RecordBucketCreate:
		return "bucket_create"
	case RecordBucketDelete:
		return "bucket_delete"
	default:
		return "unknown"
	}
}

// recordHeaderSize is length(4) || type(1) || crc32(4) preceding payload.
const recordHeaderSize = 4 + 1 + 4

// Record is one logical log entry. Payload is the type-specific body:
// for Put, tx_id(8)||bucket_len(1)||bucket||key_len(4)||key||val_len(4)||val;
// for Delete, the same without the value; for the Tx* and Checkpoint
// markers, an 8-byte transaction or checkpoint identifier.
type Record struct {
	Type    RecordType
	Payload []byte
}

// EncodePut builds the Payload for a RecordPut.
func EncodePut(txID uint64, bucketName string, key, val []byte) []byte {
	out := make([]byte, 0, 8+1+len(bucketName)+4+len(key)+4+len(val))
	var txb [8]byte
	bx.PutU64(txb[:], txID)
	out = append(out, txb[:]...)
	out = append(out, byte(len(bucketName)))
	out = append(out, bucketName...)
	var klen [4]byte
	bx.PutU32(klen[:], uint32(len(key)))
	out = append(out, klen[:]...)
	out = append(out, key...)
	var vlen [4]byte
	bx.PutU32(vlen[:], uint32(len(val)))
	out = append(out, vlen[:]...)
	out = append(out, val...)
	return out
}

// DecodePut parses the Payload of a RecordPut.
func DecodePut(payload []byte) (txID uint64, bucketName string, key, val []byte, err error) {
	if len(payload) < 8+1+4 {
		return 0, "", nil, nil, ErrCorruptRecord
	}
	off := 0
	txID = bx.U64(payload[off : off+8])
	off += 8
	nameLen := int(payload[off])
	off++
	if off+nameLen+4 > len(payload) {
		return 0, "", nil, nil, ErrCorruptRecord
	}
	bucketName = string(payload[off : off+nameLen])
	off += nameLen
	keyLen := int(bx.U32(payload[off : off+4]))
	off += 4
	if off+keyLen+4 > len(payload) {
		return 0, "", nil, nil, ErrCorruptRecord
	}
	key = payload[off : off+keyLen]
	off += keyLen
	valLen := int(bx.U32(payload[off : off+4]))
	off += 4
	if off+valLen > len(payload) {
		return 0, "", nil, nil, ErrCorruptRecord
	}
	val = payload[off : off+valLen]
	return txID, bucketName, key, val, nil
}

// EncodeDelete builds the Payload for a RecordDelete.
func EncodeDelete(txID uint64, bucketName string, key []byte) []byte {
	out := make([]byte, 0, 8+1+len(bucketName)+4+len(key))
	var txb [8]byte
	bx.PutU64(txb[:], txID)
	out = append(out, txb[:]...)
	out = append(out, byte(len(bucketName)))
	out = append(out, bucketName...)
	var klen [4]byte
	bx.PutU32(klen[:], uint32(len(key)))
	out = append(out, klen[:]...)
	out = append(out, key...)
	return out
}

// DecodeDelete parses the Payload of a RecordDelete.
func DecodeDelete(payload []byte) (txID uint64, bucketName string, key []byte, err error) {
	if len(payload) < 8+1+4 {
		return 0, "", nil, ErrCorruptRecord
	}
	off := 0
	txID = bx.U64(payload[off : off+8])
	off += 8
	nameLen := int(payload[off])
	off++
	if off+nameLen+4 > len(payload) {
		return 0, "", nil, ErrCorruptRecord
	}
	bucketName = string(payload[off : off+nameLen])
	off += nameLen
	keyLen := int(bx.U32(payload[off : off+4]))
	off += 4
	if off+keyLen > len(payload) {
		return 0, "", nil, ErrCorruptRecord
	}
	key = payload[off : off+keyLen]
	return txID, bucketName, key, nil
}

// EncodeTxMarker builds the Payload for TxBegin/TxCommit/TxAbort.
func EncodeTxMarker(txID uint64) []byte {
	buf := make([]byte, 8)
	bx.PutU64(buf, txID)
	return buf
}

// DecodeTxMarker parses the Payload of a Tx* marker record.
func DecodeTxMarker(payload []byte) (uint64, error) {
	if len(payload) < 8 {
		return 0, ErrCorruptRecord
	}
	return bx.U64(payload[:8]), nil
}

// EncodeBucketOp builds the Payload for a RecordBucketCreate.
func EncodeBucketOp(txID uint64, bucketName string) []byte {
	out := make([]byte, 0, 8+1+len(bucketName))
	var txb [8]byte
	bx.PutU64(txb[:], txID)
	out = append(out, txb[:]...)
	out = append(out, byte(len(bucketName)))
	out = append(out, bucketName...)
	return out
}

// DecodeBucketOp parses the Payload of a RecordBucketCreate.
func DecodeBucketOp(payload []byte) (txID uint64, bucketName string, err error) {
	if len(payload) < 8+1 {
		return 0, "", ErrCorruptRecord
	}
	off := 0
	txID = bx.U64(payload[off : off+8])
	off += 8
	nameLen := int(payload[off])
	off++
	if off+nameLen > len(payload) {
		return 0, "", ErrCorruptRecord
	}
	bucketName = string(payload[off : off+nameLen])
	return txID, bucketName, nil
}

// EncodeBucketDelete builds the Payload for a RecordBucketDelete,
// carrying the cascade flag the staging WriteTx was given. Replay passes
// the flag back to WriteTx.DeleteBucket, which re-checks bucket
// emptiness against the replayed state when the flag is false.
func EncodeBucketDelete(txID uint64, bucketName string, cascade bool) []byte {
	out := EncodeBucketOp(txID, bucketName)
	var c byte
	if cascade {
		c = 1
	}
	return append(out, c)
}

// DecodeBucketDelete parses the Payload of a RecordBucketDelete.
func DecodeBucketDelete(payload []byte) (txID uint64, bucketName string, cascade bool, err error) {
	if len(payload) < 1 {
		return 0, "", false, ErrCorruptRecord
	}
	txID, bucketName, err = DecodeBucketOp(payload[:len(payload)-1])
	if err != nil {
		return 0, "", false, err
	}
	cascade = payload[len(payload)-1] != 0
	return txID, bucketName, cascade, nil
}

// EncodeCheckpoint builds the Payload for a RecordCheckpoint.
func EncodeCheckpoint(lsn uint64) []byte {
	buf := make([]byte, 8)
	bx.PutU64(buf, lsn)
	return buf
}

// encodeRecord serializes a full on-disk record: length || type || crc32
// || payload, where length counts only the payload and crc32 is computed
// over type||payload.
func encodeRecord(rec Record) []byte {
	buf := make([]byte, recordHeaderSize+len(rec.Payload))
	bx.PutU32(buf[0:4], uint32(len(rec.Payload)))
	buf[4] = byte(rec.Type)
	crcInput := make([]byte, 1+len(rec.Payload))
	crcInput[0] = byte(rec.Type)
	copy(crcInput[1:], rec.Payload)
	crc := crc32.ChecksumIEEE(crcInput)
	bx.PutU32(buf[5:9], crc)
	copy(buf[recordHeaderSize:], rec.Payload)
	return buf
}
