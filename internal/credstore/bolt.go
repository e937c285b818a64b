package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("exonvc_session")

// BoltStore persists credentials in a bbolt database file. Both entries are
// written and deleted inside a single transaction, so a crash can never
// leave a token without its user record or vice versa.
type BoltStore struct {
	db     *bbolt.DB
	sealer *Sealer
}

var _ Store = (*BoltStore)(nil)

// BoltOption customizes a BoltStore.
type BoltOption func(*boltConfig)

type boltConfig struct {
	passphrase string
}

// WithPassphrase enables sealing of the credential entries at rest.
func WithPassphrase(passphrase string) BoltOption {
	return func(c *boltConfig) { c.passphrase = passphrase }
}

// OpenBoltStore opens (creating if needed) the session database at path.
func OpenBoltStore(path string, opts ...BoltOption) (*BoltStore, error) {
	var cfg boltConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	s := &BoltStore{db: db}
	if cfg.passphrase != "" {
		salt, err := s.loadOrCreateSalt()
		if err != nil {
			db.Close()
			return nil, err
		}
		sealer, err := NewSealer(cfg.passphrase, salt)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.sealer = sealer
	}
	return s, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) loadOrCreateSalt() ([]byte, error) {
	var salt []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return err
		}
		if existing := b.Get([]byte(sealSaltEntry)); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		fresh, err := NewSealSalt()
		if err != nil {
			return err
		}
		salt = fresh
		return b.Put([]byte(sealSaltEntry), fresh)
	})
	if err != nil {
		return nil, fmt.Errorf("session seal salt: %w", err)
	}
	return salt, nil
}

func (s *BoltStore) Load(_ context.Context) (Credentials, bool, error) {
	var token, user []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		token = append([]byte(nil), b.Get([]byte(tokenEntry))...)
		user = append([]byte(nil), b.Get([]byte(userEntry))...)
		return nil
	})
	if err != nil {
		return Credentials{}, false, fmt.Errorf("load session: %w", err)
	}
	if len(token) == 0 || len(user) == 0 {
		return Credentials{}, false, nil
	}
	if s.sealer != nil {
		if token, err = s.sealer.Open(token); err != nil {
			return Credentials{}, false, nil
		}
		if user, err = s.sealer.Open(user); err != nil {
			return Credentials{}, false, nil
		}
	}
	creds, ok := decodePair(token, user)
	return creds, ok, nil
}

func (s *BoltStore) Save(_ context.Context, creds Credentials) error {
	token, user, err := encodePair(creds)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if token, err = s.sealer.Seal(token); err != nil {
			return err
		}
		if user, err = s.sealer.Seal(user); err != nil {
			return err
		}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(tokenEntry), token); err != nil {
			return err
		}
		return b.Put([]byte(userEntry), user)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *BoltStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(tokenEntry)); err != nil {
			return err
		}
		return b.Delete([]byte(userEntry))
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *BoltStore) DeviceID(_ context.Context) (string, error) {
	var id string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return err
		}
		if existing := b.Get([]byte(deviceIDEntry)); existing != nil {
			id = string(existing)
			return nil
		}
		id = uuid.NewString()
		return b.Put([]byte(deviceIDEntry), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("session device id: %w", err)
	}
	return id, nil
}
