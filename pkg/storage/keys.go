package storage

import "encoding/binary"

// Key schema:
//
//	cmd:<8-byte big-endian seq> → journaled command bytes
//
// Big-endian sequence numbers make pebble's key order the submission order.
const prefixCommand = "cmd:"

func commandKey(seq uint64) []byte {
	k := make([]byte, len(prefixCommand)+8)
	copy(k, prefixCommand)
	binary.BigEndian.PutUint64(k[len(prefixCommand):], seq)
	return k
}

func seqFromKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(prefixCommand):])
}

// keyUpperBound returns the smallest key greater than every key with prefix
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}
