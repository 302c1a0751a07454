package wallet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btpc-network/btpc/crypto"
)

// fileMagic and fileVersion identify the on-disk EncryptedWalletFile
// layout (spec §3 "EncryptedWalletFile on-disk layout", §4.6.2): magic |
// version | salt | nonce | ciphertext+tag.
var fileMagic = [8]byte{'B', 'T', 'P', 'C', 'W', 'A', 'L', 'T'}

const fileVersion uint16 = 1

// ErrDecryptionFailed is returned when a wallet file's authentication tag
// does not verify, surfaced to the user as "incorrect password" (spec
// §4.6.2).
var ErrDecryptionFailed = errors.New("wallet: decryption failed (incorrect password)")

// ErrBadMagic and ErrUnsupportedVersion report a file that isn't a
// recognizable EncryptedWalletFile at all, distinct from a wrong password.
var (
	ErrBadMagic          = errors.New("wallet: not a wallet file (bad magic)")
	ErrUnsupportedVersion = errors.New("wallet: unsupported wallet file version")
)

// encryptToFile serializes data canonically, derives an AEAD key from
// password and a fresh salt, encrypts under a fresh nonce, and writes the
// envelope to path atomically (write-temp, fsync, rename) so a crash never
// leaves a partially written or plaintext file behind.
func encryptToFile(path string, password []byte, data any) error {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("wallet: marshal: %w", err)
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return err
	}
	key := crypto.DeriveAEADKey(password, salt)
	defer crypto.Zeroize(key[:])

	ciphertext, err := crypto.SealGCM(key, nonce, plaintext)
	if err != nil {
		return fmt.Errorf("wallet: seal: %w", err)
	}

	out := make([]byte, 0, 8+2+crypto.SaltSize+crypto.NonceSize+len(ciphertext))
	out = append(out, fileMagic[:]...)
	var verBuf [2]byte
	binary.LittleEndian.PutUint16(verBuf[:], fileVersion)
	out = append(out, verBuf[:]...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = append(out, ciphertext...)

	return atomicWriteFile(path, out)
}

// decryptFromFile reads an EncryptedWalletFile at path, verifies magic and
// version, and decrypts into dst. ErrDecryptionFailed distinguishes a
// wrong password from a structurally invalid file.
func decryptFromFile(path string, password []byte, dst any) error {
	raw, err := os.ReadFile(path) // operator-supplied wallet path
	if err != nil {
		return err
	}
	minLen := 8 + 2 + crypto.SaltSize + crypto.NonceSize
	if len(raw) < minLen {
		return ErrBadMagic
	}
	if string(raw[:8]) != string(fileMagic[:]) {
		return ErrBadMagic
	}
	version := binary.LittleEndian.Uint16(raw[8:10])
	if version != fileVersion {
		return ErrUnsupportedVersion
	}
	off := 10
	var salt [crypto.SaltSize]byte
	copy(salt[:], raw[off:off+crypto.SaltSize])
	off += crypto.SaltSize
	var nonce [crypto.NonceSize]byte
	copy(nonce[:], raw[off:off+crypto.NonceSize])
	off += crypto.NonceSize
	ciphertext := raw[off:]

	key := crypto.DeriveAEADKey(password, salt)
	defer crypto.Zeroize(key[:])

	plaintext, err := crypto.OpenGCM(key, nonce, ciphertext)
	if err != nil {
		return ErrDecryptionFailed
	}
	defer crypto.Zeroize(plaintext)

	return json.Unmarshal(plaintext, dst)
}

// atomicWriteFile writes b to path via a temp-file-then-rename sequence,
// fsyncing both the temp file and the containing directory, mirroring the
// storage package's manifest commit (spec §4.6.2 "replaced atomically").
func atomicWriteFile(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("wallet: open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("wallet: write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("wallet: fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("wallet: close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("wallet: rename: %w", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("wallet: fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("wallet: fsync dir: %w", err)
	}
	return d.Close()
}
