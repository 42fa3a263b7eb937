package placement

import (
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/emberql/emberql/pkg/encryption"
	"github.com/emberql/emberql/pkg/errs"
)

// MemoryTier is an in-memory placement.Store used for the hot and warm
// tiers: a plain mutex-guarded map, matching the access pattern of
// a plain mutex-guarded map, the simplest in-memory engine shape.
type MemoryTier struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryTier constructs an empty in-memory tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{data: make(map[string][]byte)}
}

func (t *MemoryTier) Get(key string) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *MemoryTier) Put(key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	t.data[key] = stored
	return nil
}

func (t *MemoryTier) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key)
	return nil
}

// ColdTier is a badger-backed, AES-256-GCM-encrypted placement.Store for
// the cold tier, adapted from a badger-backed persistent KV engine (persistent
// KV with a byte-prefixed key scheme) and encryption.Encryptor (fields
// are encrypted before they ever reach disk).
type ColdTier struct {
	db        *badger.DB
	encryptor *encryption.Encryptor
}

const coldTierKeyPrefix = byte(0x10)

// NewColdTier opens (or creates) a badger database at dataDir and wraps
// it with password-derived AES-256-GCM encryption for every value.
func NewColdTier(dataDir, password string) (*ColdTier, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConnectionFailed, err)
	}

	enc, err := encryption.NewEncryptorWithPassword(password, encryption.DefaultConfig())
	if err != nil {
		db.Close()
		return nil, errs.Wrap(errs.CodeConnectionFailed, err)
	}

	return &ColdTier{db: db, encryptor: enc}, nil
}

func coldKey(key string) []byte {
	return append([]byte{coldTierKeyPrefix}, []byte(key)...)
}

func (c *ColdTier) Get(key string) ([]byte, bool, error) {
	var ciphertext string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(coldKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ciphertext = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.CodeConnectionFailed, err)
	}

	plaintext, err := c.encryptor.Decrypt(ciphertext)
	if err != nil {
		return nil, false, errs.Wrap(errs.CodeConstraintViolation, err)
	}
	return plaintext, true, nil
}

func (c *ColdTier) Put(key string, value []byte) error {
	ciphertext, err := c.encryptor.Encrypt(value)
	if err != nil {
		return errs.Wrap(errs.CodeConstraintViolation, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(coldKey(key), []byte(ciphertext))
	})
	if err != nil {
		return errs.Wrap(errs.CodeConnectionFailed, err)
	}
	return nil
}

func (c *ColdTier) Delete(key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(coldKey(key))
	})
	if err != nil {
		return errs.Wrap(errs.CodeConnectionFailed, err)
	}
	return nil
}

// Close releases the underlying badger database.
func (c *ColdTier) Close() error {
	return c.db.Close()
}
