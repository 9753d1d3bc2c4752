package utils

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Score response wire format (fixed by the off-chain provider script):
// Count (32 bytes, big-endian) || Count addresses (each left-padded to 32 bytes)
// || Count scores (each a 32-byte big-endian unsigned integer)
const scoreWordSize = 32

// EncodeScoreResponse encodes parallel address/score slices into the provider
// wire format as a 0x-prefixed hex string.
// Returns an error if the slices differ in length.
func EncodeScoreResponse(addresses []common.Address, scores []uint64) (string, error) {
	if len(addresses) != len(scores) {
		return "", fmt.Errorf("address/score length mismatch: %d vs %d", len(addresses), len(scores))
	}

	result := make([]byte, scoreWordSize*(1+2*len(addresses)))

	// Word 0: entry count
	countWord := new(big.Int).SetInt64(int64(len(addresses))).FillBytes(make([]byte, scoreWordSize))
	copy(result[0:scoreWordSize], countWord)

	// Words 1..n: addresses, each left-padded to 32 bytes
	for i, addr := range addresses {
		offset := scoreWordSize * (1 + i)
		copy(result[offset:offset+scoreWordSize], common.LeftPadBytes(addr.Bytes(), scoreWordSize))
	}

	// Words n+1..2n: scores as 32-byte big-endian unsigned integers
	for i, score := range scores {
		offset := scoreWordSize * (1 + len(addresses) + i)
		scoreWord := new(big.Int).SetUint64(score).FillBytes(make([]byte, scoreWordSize))
		copy(result[offset:offset+scoreWordSize], scoreWord)
	}

	return "0x" + hex.EncodeToString(result), nil
}

// DecodeScoreResponse decodes a provider response payload into parallel
// address/score slices. An empty payload yields empty slices and no error;
// the caller decides whether an empty response is acceptable.
func DecodeScoreResponse(payload string) ([]common.Address, []uint64, error) {
	payload = strings.TrimPrefix(payload, "0x")
	if payload == "" {
		return nil, nil, nil
	}

	data, err := hex.DecodeString(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid hex payload: %v", err)
	}

	if len(data) < scoreWordSize {
		return nil, nil, fmt.Errorf("payload too short: %d bytes", len(data))
	}
	if len(data)%scoreWordSize != 0 {
		return nil, nil, fmt.Errorf("payload length %d is not a multiple of %d", len(data), scoreWordSize)
	}

	count := new(big.Int).SetBytes(data[0:scoreWordSize])
	if !count.IsInt64() {
		return nil, nil, fmt.Errorf("entry count out of range: %s", count.String())
	}
	n := int(count.Int64())

	expected := scoreWordSize * (1 + 2*n)
	if len(data) != expected {
		return nil, nil, fmt.Errorf("payload length mismatch: expected %d bytes for %d entries, got %d", expected, n, len(data))
	}

	addresses := make([]common.Address, n)
	scores := make([]uint64, n)

	for i := 0; i < n; i++ {
		offset := scoreWordSize * (1 + i)
		// An address occupies the low 20 bytes of its word
		addresses[i] = common.BytesToAddress(data[offset : offset+scoreWordSize])
	}

	for i := 0; i < n; i++ {
		offset := scoreWordSize * (1 + n + i)
		scoreWord := new(big.Int).SetBytes(data[offset : offset+scoreWordSize])
		if !scoreWord.IsUint64() {
			return nil, nil, fmt.Errorf("score %d out of uint64 range: %s", i, scoreWord.String())
		}
		scores[i] = scoreWord.Uint64()
	}

	return addresses, scores, nil
}
