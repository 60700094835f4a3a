package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/passm/internal/common"
	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/models"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/google/uuid"
)

// SecretSealer encrypts and decrypts secret values at rest.
type SecretSealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// ElevationChecker answers whether an account currently holds elevated
// trust.
type ElevationChecker interface {
	HasElevation(ctx context.Context, accountID string) (bool, error)
}

// SecretResult is the outcome of ReadSecret. When ElevationRequired is set,
// Secret is nil and only Entry is populated.
type SecretResult struct {
	Entry             models.EntryMetadata
	Secret            []byte
	ElevationRequired bool
}

// VaultService guards the stored entries. Listing and creating need a valid
// session only; reading, updating and deleting a secret need elevation.
type VaultService struct {
	store     repomanager.Store
	sealer    SecretSealer
	elevation ElevationChecker
	clock     timex.Clock
	log       logging.Logger
}

func NewVaultService(store repomanager.Store, sealer SecretSealer, elevation ElevationChecker, clock timex.Clock, log logging.Logger) *VaultService {
	return &VaultService{
		store:     store,
		sealer:    sealer,
		elevation: elevation,
		clock:     clock,
		log:       log.With("module", "vault"),
	}
}

func (s *VaultService) requireElevation(ctx context.Context, accountID string) error {
	ok, err := s.elevation.HasElevation(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrElevationRequired
	}
	return nil
}

func (s *VaultService) seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	blob, err := s.sealer.Encrypt(plaintext)
	if err != nil {
		s.log.Error(ctx, "encryption failed", "error", err)
		return nil, common.ErrCipher
	}
	return blob, nil
}

// load fetches an owned entry. Malformed ids are reported as not found.
func (s *VaultService) load(ctx context.Context, accountID, entryID string) (*models.Entry, error) {
	if _, err := uuid.Parse(entryID); err != nil {
		return nil, common.ErrorNotFound
	}
	e, err := s.store.Repos().Entries.Get(ctx, accountID, entryID)
	if err != nil {
		return nil, storeFailure(ctx, s.log, "load entry", err)
	}
	return e, nil
}

// Create encrypts secret and stores a new entry, returning its id.
func (s *VaultService) Create(ctx context.Context, accountID, title, username string, secret []byte) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", common.ErrInvalidTitle
	}

	blob, err := s.seal(ctx, secret)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	e := &models.Entry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Title:     title,
		Username:  username,
		Secret:    blob,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Repos().Entries.Create(ctx, e); err != nil {
		return "", storeFailure(ctx, s.log, "create entry", err)
	}
	return e.ID, nil
}

// ListMetadata returns the account's entries without secret material.
func (s *VaultService) ListMetadata(ctx context.Context, accountID string) ([]models.EntryMetadata, error) {
	list, err := s.store.Repos().Entries.List(ctx, accountID)
	if err != nil {
		return nil, storeFailure(ctx, s.log, "list entries", err)
	}
	result := make([]models.EntryMetadata, 0, len(list))
	for _, e := range list {
		result = append(result, e.Metadata())
	}
	return result, nil
}

// ReadSecret decrypts an entry's secret. Without elevation it returns the
// metadata with ElevationRequired set instead of failing.
func (s *VaultService) ReadSecret(ctx context.Context, accountID, entryID string) (*SecretResult, error) {
	e, err := s.load(ctx, accountID, entryID)
	if err != nil {
		return nil, err
	}

	res := &SecretResult{Entry: e.Metadata()}
	if err := s.requireElevation(ctx, accountID); err != nil {
		if errors.Is(err, common.ErrElevationRequired) {
			res.ElevationRequired = true
			return res, nil
		}
		return nil, err
	}

	plaintext, err := s.sealer.Decrypt(e.Secret)
	if err != nil {
		s.log.Error(ctx, "decryption failed", "entry_id", e.ID, "error", err)
		return nil, common.ErrCipher
	}
	res.Secret = plaintext
	return res, nil
}

// Update applies patch to an owned entry. The secret is re-encrypted only
// when the patch carries one.
func (s *VaultService) Update(ctx context.Context, accountID, entryID string, patch models.EntryPatch) error {
	if err := s.requireElevation(ctx, accountID); err != nil {
		return err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return common.ErrInvalidTitle
	}

	e, err := s.load(ctx, accountID, entryID)
	if err != nil {
		return err
	}

	if patch.Title != nil {
		e.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Username != nil {
		e.Username = *patch.Username
	}
	if patch.Secret != nil {
		blob, err := s.seal(ctx, patch.Secret)
		if err != nil {
			return err
		}
		e.Secret = blob
	}
	e.UpdatedAt = s.clock.Now()

	if err := s.store.Repos().Entries.Update(ctx, e); err != nil {
		return storeFailure(ctx, s.log, "update entry", err)
	}
	return nil
}

// Delete removes an owned entry.
func (s *VaultService) Delete(ctx context.Context, accountID, entryID string) error {
	if err := s.requireElevation(ctx, accountID); err != nil {
		return err
	}
	if _, err := uuid.Parse(entryID); err != nil {
		return common.ErrorNotFound
	}
	if err := s.store.Repos().Entries.Delete(ctx, accountID, entryID); err != nil {
		return storeFailure(ctx, s.log, "delete entry", err)
	}
	return nil
}
