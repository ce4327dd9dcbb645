// Package crypt decrypts archived objects encrypted with AES in counter mode.
// Any byte offset of the plaintext can be decrypted without touching the
// bytes before it.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/umccr/htsget-archive/internal/htserror"
)

// BlockSize is the cipher block size; counters advance once per block.
const BlockSize = aes.BlockSize

// key derivation parameters of the archive
const (
	kdfIterations = 1024
	kdfSalt       = "\xf4\x22\x01\x00\x9e\xdf\x4e\x15"
)

// Algorithm tags understood by KeySize.
const (
	AES256 = "aes256"
	AES128 = "aes128"
)

// KeySize returns the key length for an algorithm tag. An empty tag means
// AES256.
func KeySize(algorithm string) (int, error) {
	switch strings.ToLower(algorithm) {
	case "", AES256, "aes-256", "aes256-ctr":
		return 32, nil
	case AES128, "aes-128", "aes128-ctr":
		return 16, nil
	}
	return 0, htserror.E(htserror.ServerError, "unsupported encryption algorithm "+algorithm, nil)
}

// DeriveKey turns a key service passphrase into an AES key of size bytes.
func DeriveKey(passphrase string, size int) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(kdfSalt), kdfIterations, size, sha1.New)
}

// AdvanceIV returns iv incremented by blocks, treating it as a big-endian
// 128-bit integer that wraps like a CTR counter.
func AdvanceIV(iv [BlockSize]byte, blocks uint64) [BlockSize]byte {
	carry := blocks
	for i := BlockSize - 1; i >= 0 && carry != 0; i-- {
		sum := uint64(iv[i]) + carry&0xff
		iv[i] = byte(sum)
		carry = carry>>8 + sum>>8
	}
	return iv
}

// Decrypt decrypts src, which starts at byte offset of the plaintext stream
// encrypted with key and base iv, into a new slice.
func Decrypt(key []byte, iv [BlockSize]byte, offset int64, src []byte) ([]byte, error) {
	if offset < 0 {
		return nil, htserror.E(htserror.InvalidRange, fmt.Sprintf("negative offset %d", offset), nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "initialising cipher", err)
	}
	counter := AdvanceIV(iv, uint64(offset/BlockSize))
	stream := cipher.NewCTR(block, counter[:])
	if skip := offset % BlockSize; skip != 0 {
		var discard [BlockSize]byte
		stream.XORKeyStream(discard[:skip], discard[:skip])
	}
	dst := make([]byte, len(src))
	stream.XORKeyStream(dst, src)
	return dst, nil
}

// Encrypt is the inverse of Decrypt; counter mode is symmetric. It is used to
// produce test fixtures and by tools that upload into the archive.
func Encrypt(key []byte, iv [BlockSize]byte, offset int64, src []byte) ([]byte, error) {
	return Decrypt(key, iv, offset, src)
}
