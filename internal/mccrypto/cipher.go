// Package mccrypto provides the AES/CFB8 stream cipher the wire protocol
// encrypts with. Ciphertext length always equals plaintext length; the IV
// is the shared secret itself, as the protocol dictates.
package mccrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// CFB8 is an AES cipher in 8-bit cipher feedback mode. Encrypt and Decrypt
// keep independent shift registers so the two directions of the stream do
// not interfere.
type CFB8 struct {
	block  cipher.Block
	encReg []byte
	decReg []byte
	tmp    []byte
}

// NewCFB8 builds a CFB8 cipher from the shared secret established during
// login. The secret must be a valid AES key length (16 bytes on the wire).
func NewCFB8(secret []byte) (*CFB8, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("mccrypto: %w", err)
	}
	c := &CFB8{
		block:  block,
		encReg: make([]byte, aes.BlockSize),
		decReg: make([]byte, aes.BlockSize),
		tmp:    make([]byte, aes.BlockSize),
	}
	copy(c.encReg, secret)
	copy(c.decReg, secret)
	return c, nil
}

// Encrypt returns the ciphertext of p. The cipher state advances by one
// byte of feedback per input byte.
func (c *CFB8) Encrypt(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		c.block.Encrypt(c.tmp, c.encReg)
		v := b ^ c.tmp[0]
		out[i] = v
		copy(c.encReg, c.encReg[1:])
		c.encReg[aes.BlockSize-1] = v
	}
	return out
}

// Decrypt returns the plaintext of p.
func (c *CFB8) Decrypt(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		c.block.Encrypt(c.tmp, c.decReg)
		out[i] = b ^ c.tmp[0]
		copy(c.decReg, c.decReg[1:])
		c.decReg[aes.BlockSize-1] = b
	}
	return out
}
