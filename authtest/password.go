package authtest

import (
	"crypto/rand"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/argon2"
)

// Parameters sit at the argon2id minimums.
const (
	hashTime    uint32 = 1
	hashMemory  uint32 = 8 * 1024
	hashThreads uint8  = 1
	hashKeyLen  uint32 = 32
	saltLen            = 16
)

type passwordHash struct {
	salt []byte
	key  []byte
}

func hashPassword(password string) (passwordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return passwordHash{}, err
	}
	return passwordHash{
		salt: salt,
		key:  argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen),
	}, nil
}

func (h passwordHash) matches(password string) bool {
	if len(h.salt) == 0 {
		return false
	}
	computed := argon2.IDKey([]byte(password), h.salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	return subtle.ConstantTimeCompare(computed, h.key) == 1
}
