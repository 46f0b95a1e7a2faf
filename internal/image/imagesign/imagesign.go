package imagesign

import (
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/open-edge-platform/flatpak-composer/internal/utils/logger"
)

// SignatureSuffix is appended to the signed file's path.
const SignatureSuffix = ".asc"

func loadKeyRing(keyFile string) (openpgp.EntityList, error) {
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, fmt.Errorf("signing key file not found: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("reading signing key %s: %w", keyFile, err)
	}
	return keyring, nil
}

func signer(keyring openpgp.EntityList, passphrase []byte) (*openpgp.Entity, error) {
	for _, e := range keyring {
		if e.PrivateKey == nil {
			continue
		}
		if e.PrivateKey.Encrypted {
			if len(passphrase) == 0 {
				return nil, fmt.Errorf("signing key %s is encrypted and no passphrase was given", e.PrimaryKey.KeyIdString())
			}
			if err := e.DecryptPrivateKeys(passphrase); err != nil {
				return nil, fmt.Errorf("decrypting signing key %s: %w", e.PrimaryKey.KeyIdString(), err)
			}
		}
		return e, nil
	}
	return nil, fmt.Errorf("no private key in keyring")
}

// SignImage writes an armored detached OpenPGP signature of imagePath next
// to it and returns the signature path. The first private key of the armored
// keyring keyFile signs; passphrase unlocks it when it is encrypted. An
// empty keyFile disables signing and returns "".
func SignImage(imagePath, keyFile string, passphrase []byte) (string, error) {
	log := logger.Logger()

	if keyFile == "" {
		return "", nil
	}
	keyring, err := loadKeyRing(keyFile)
	if err != nil {
		return "", err
	}
	entity, err := signer(keyring, passphrase)
	if err != nil {
		return "", err
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("opening image to sign: %w", err)
	}
	defer image.Close()

	sigPath := imagePath + SignatureSuffix
	sig, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("creating signature file: %w", err)
	}
	if err := openpgp.ArmoredDetachSign(sig, entity, image, nil); err != nil {
		sig.Close()
		os.Remove(sigPath)
		return "", fmt.Errorf("failed to sign image: %w", err)
	}
	if err := sig.Close(); err != nil {
		os.Remove(sigPath)
		return "", fmt.Errorf("writing signature file: %w", err)
	}

	log.Infof("signed %s with key %s", imagePath, entity.PrimaryKey.KeyIdString())
	return sigPath, nil
}

// VerifyImage checks the detached signature sigPath of imagePath against the
// keys in keyFile and returns the signing key id in lower-case hex.
func VerifyImage(imagePath, sigPath, keyFile string) (string, error) {
	keyring, err := loadKeyRing(keyFile)
	if err != nil {
		return "", err
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("opening signed image: %w", err)
	}
	defer image.Close()

	sig, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("opening signature: %w", err)
	}
	defer sig.Close()

	entity, err := openpgp.CheckArmoredDetachedSignature(keyring, image, sig, nil)
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return strings.ToLower(entity.PrimaryKey.KeyIdString()), nil
}
