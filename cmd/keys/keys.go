package keys

import (
	"errors"
	"fmt"
	"io"

	"tradeexecutor/src/security"
)

// Encrypt writes the ciphertext for each value, one per line, ready for the
// *_ENC variables.
func Encrypt(w io.Writer, values []string) error {
	if len(values) == 0 {
		return errors.New("nothing to encrypt")
	}
	for _, v := range values {
		sealed, err := security.EncryptString(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, sealed); err != nil {
			return err
		}
	}
	return nil
}

// Decrypt reverses Encrypt. Useful to check a key rotation.
func Decrypt(w io.Writer, values []string) error {
	if len(values) == 0 {
		return errors.New("nothing to decrypt")
	}
	for _, v := range values {
		plain, err := security.DecryptString(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, plain); err != nil {
			return err
		}
	}
	return nil
}
