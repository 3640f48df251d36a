package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix 标记已加密的字段值
// 外部管理界面可能直接写入明文 API Key，带前缀的值才需要解密
const sealedPrefix = "enc:v1:"

var (
	// ErrInvalidKeySize 密钥长度错误
	ErrInvalidKeySize = errors.New("invalid key size: must be 32 bytes for AES-256")
	// ErrInvalidCiphertext 密文格式错误
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or corrupted")
	// ErrDecryptionFailed 解密失败
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag verification failed")
)

// SecretBox 使用 AES-256-GCM 加解密供应商凭据
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox 创建 SecretBox，key 必须为 32 字节
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretBox{aead: aead}, nil
}

// Seal 加密明文，返回带前缀的 Base64(nonce + ciphertext + tag)
func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open 解密 Seal 的输出；未带前缀的值按明文原样返回
func (b *SecretBox) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed 判断值是否为 Seal 的输出
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
