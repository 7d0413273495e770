// Package encryption seals OAuth secrets with envelope encryption: AES-256-GCM
// under a data key that is itself wrapped by AWS KMS.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"payshield-service/internal/config"
	"payshield-service/internal/util"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

const (
	sealedPrefix    = "v1:"
	dataKeyRotation = 24 * time.Hour
)

// KMSAPI is the subset of the KMS client the manager needs.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type EncryptionManager struct {
	kmsClient KMSAPI
	config    *config.Config
	keyCache  sync.Map // wrapped DEK (base64) -> plaintext DEK

	mu         sync.Mutex
	current    *DataKey
	currentAge time.Time
}

type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
	KeyID      string
}

// NewKMSClient loads the default AWS credential chain for the configured region.
func NewKMSClient(ctx context.Context, cfg *config.Config) (*kms.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KMS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

// NewEncryptionManager builds a manager. With KMS disabled data keys are local
// and stored unwrapped, which is only fit for development.
func NewEncryptionManager(cfg *config.Config, kmsClient KMSAPI) *EncryptionManager {
	return &EncryptionManager{
		kmsClient: kmsClient,
		config:    cfg,
	}
}

// GenerateDataKey generates a new data encryption key using KMS
func (em *EncryptionManager) GenerateDataKey(ctx context.Context) (*DataKey, error) {
	if !em.config.KMS.Enabled {
		return em.generateLocalKey()
	}

	result, err := em.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(em.config.KMS.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return &DataKey{
		Plaintext:  result.Plaintext,
		Ciphertext: result.CiphertextBlob,
		KeyID:      em.config.KMS.KeyID,
	}, nil
}

func (em *EncryptionManager) generateLocalKey() (*DataKey, error) {
	key := make([]byte, 32) // AES-256
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate local encryption key: %w", err)
	}
	return &DataKey{
		Plaintext:  key,
		Ciphertext: key,
		KeyID:      "local-" + uuid.New().String(),
	}, nil
}

// dataKey returns the current data key, generating a fresh one once a day.
func (em *EncryptionManager) dataKey(ctx context.Context) (*DataKey, error) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.current != nil && time.Since(em.currentAge) < dataKeyRotation {
		return em.current, nil
	}
	dk, err := em.GenerateDataKey(ctx)
	if err != nil {
		return nil, err
	}
	em.current, em.currentAge = dk, time.Now()
	em.keyCache.Store(base64.StdEncoding.EncodeToString(dk.Ciphertext), dk.Plaintext)
	util.Info("generated token data key", zap.String("key_id", dk.KeyID))
	return dk, nil
}

// Seal encrypts plaintext into "v1:<wrapped dek>:<nonce+ciphertext>", both parts base64.
func (em *EncryptionManager) Seal(ctx context.Context, plaintext string) (string, error) {
	dk, err := em.dataKey(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	gcm, err := newGCM(dk.Plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return sealedPrefix +
		base64.StdEncoding.EncodeToString(dk.Ciphertext) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the version prefix predate sealing and are returned unchanged.
func (em *EncryptionManager) Open(ctx context.Context, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	parts := strings.SplitN(strings.TrimPrefix(sealed, sealedPrefix), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed sealed value", ErrDecryptionFailed)
	}

	key, err := em.unwrap(ctx, parts[0])
	if err != nil {
		return "", err
	}
	return decryptWithKey(parts[1], key)
}

func (em *EncryptionManager) unwrap(ctx context.Context, wrapped string) ([]byte, error) {
	if cached, ok := em.keyCache.Load(wrapped); ok {
		return cached.([]byte), nil
	}

	blob, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid DEK format", ErrDecryptionFailed)
	}

	var plaintextDEK []byte
	if em.config.KMS.Enabled {
		result, err := em.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt DEK: %w", ErrDecryptionFailed, err)
		}
		plaintextDEK = result.Plaintext
	} else {
		plaintextDEK = blob
	}

	em.keyCache.Store(wrapped, plaintextDEK)
	return plaintextDEK, nil
}

func decryptWithKey(encryptedValue string, key []byte) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedValue)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ClearCache drops every unwrapped DEK held in memory.
func (em *EncryptionManager) ClearCache() {
	em.keyCache.Range(func(key, value interface{}) bool {
		em.keyCache.Delete(key)
		return true
	})
}
