package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/errs"
)

// Placeholder is substituted on read paths when stored ciphertext can
// no longer be decrypted. Listings must degrade, not abort.
const Placeholder = "[encrypted]"

// scheme identifies the ciphertext format of a stored value.
type scheme int

const (
	schemeUnknown scheme = iota
	schemeIV             // ivHex:cipherHex, AES-256-CBC with random IV
	schemeLegacy         // single hex blob, key and IV derived from the secret string
)

// Encryptor performs envelope encryption of PII text fields.
type Encryptor struct {
	key    []byte // 32 bytes
	secret string // raw configured secret, needed for legacy derivation
}

// NewEncryptor builds an Encryptor from config. The key may be a
// 64-char hex string or an arbitrary passphrase (SHA-256 derived).
// With no key configured a process-lifetime random key is generated;
// every restart then invalidates existing ciphertext.
func NewEncryptor(cfg config.CryptoConfig) *Encryptor {
	if cfg.Key == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("crypto: cannot read random key material: " + err.Error())
		}
		log.Warn().Msg("CRYPTO_KEY not set, using a random process-lifetime key; existing ciphertext will be unreadable after restart")
		return &Encryptor{key: key}
	}

	if len(cfg.Key) == 64 {
		if key, err := hex.DecodeString(cfg.Key); err == nil {
			return &Encryptor{key: key, secret: cfg.Key}
		}
	}

	sum := sha256.Sum256([]byte(cfg.Key))
	return &Encryptor{key: sum[:], secret: cfg.Key}
}

// Encrypt encrypts plaintext under a fresh random IV and returns
// "ivHex:cipherHex". Ciphertext is never reused across fields.
func (e *Encryptor) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt dispatches on the ciphertext shape: the IV scheme first,
// then the legacy derived-key scheme for records written before IVs
// existed. Both failing is a DecryptionError.
func (e *Encryptor) Decrypt(value string) (string, error) {
	switch detectScheme(value) {
	case schemeIV:
		return e.decryptIV(value)
	case schemeLegacy:
		return e.decryptLegacy(value)
	default:
		return "", &errs.DecryptionError{Msg: "unrecognized ciphertext format"}
	}
}

// DecryptOrPlaceholder decrypts for read paths. Failures are logged
// and replaced with Placeholder instead of propagating.
func (e *Encryptor) DecryptOrPlaceholder(value string) string {
	if value == "" {
		return ""
	}
	plain, err := e.Decrypt(value)
	if err != nil {
		log.Warn().Err(err).Msg("decryption failed on read path, substituting placeholder")
		return Placeholder
	}
	return plain
}

func detectScheme(value string) scheme {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) == 2 && len(parts[0]) == aes.BlockSize*2 && isHex(parts[0]) && isHex(parts[1]) {
		return schemeIV
	}
	if isHex(value) && len(value) > 0 && len(value)%2 == 0 {
		return schemeLegacy
	}
	return schemeUnknown
}

func (e *Encryptor) decryptIV(value string) (string, error) {
	parts := strings.SplitN(value, ":", 2)
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", &errs.DecryptionError{Msg: "bad IV encoding", Err: err}
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", &errs.DecryptionError{Msg: "bad ciphertext encoding", Err: err}
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", &errs.DecryptionError{Msg: "ciphertext is not block aligned"}
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", &errs.DecryptionError{Msg: "invalid padding", Err: err}
	}
	return string(plain), nil
}

// decryptLegacy handles the pre-IV scheme: key and IV derived from the
// secret string via the OpenSSL EVP_BytesToKey construction (MD5).
func (e *Encryptor) decryptLegacy(value string) (string, error) {
	ct, err := hex.DecodeString(value)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", &errs.DecryptionError{Msg: "bad legacy ciphertext", Err: err}
	}

	key, iv := evpBytesToKey([]byte(e.secret), 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", &errs.DecryptionError{Msg: "invalid legacy padding", Err: err}
	}
	return string(plain), nil
}

// legacyEncrypt exists so migrations and tests can produce old-format
// values; new writes always use Encrypt.
func (e *Encryptor) legacyEncrypt(plain string) (string, error) {
	key, iv := evpBytesToKey([]byte(e.secret), 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// evpBytesToKey chains MD5 digests of (prev || secret) until enough
// key and IV material is produced.
func evpBytesToKey(secret []byte, keyLen, ivLen int) (key, iv []byte) {
	var material []byte
	var prev []byte
	for len(material) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(secret)
		prev = h.Sum(nil)
		material = append(material, prev...)
	}
	return material[:keyLen], material[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errPadding
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, errPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errPadding
		}
	}
	return data[:len(data)-pad], nil
}

var errPadding = &errs.DecryptionError{Msg: "pkcs7 padding check failed"}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
