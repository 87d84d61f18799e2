package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/cryptox"
	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/risk"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/storage"
)

type UploadResult struct {
	Name       string
	Assessment risk.Assessment
	// Revoked is set when the content scored high enough to end the
	// uploader's session.
	Revoked bool
}

// FileService stores, retrieves and removes a user's encrypted files.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.Backend
	vault       *cryptox.Vault
	scorer      risk.Scorer
	tokens      *TokenService
	credentials *CredentialService
	auditor     Auditor
	logger      logging.Logger
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, store storage.Backend, vault *cryptox.Vault,
	scorer risk.Scorer, tokens *TokenService, credentials *CredentialService, a Auditor, l logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		store:       store,
		vault:       vault,
		scorer:      scorer,
		tokens:      tokens,
		credentials: credentials,
		auditor:     a,
		logger:      l.With("module", "files"),
	}
}

func isQuarantined(name string) bool { return strings.HasSuffix(name, common.QuarantineSuffix) }

// Upload scores, encrypts and stores data under a sanitized name.
func (s *FileService) Upload(ctx context.Context, p *auth.Principal, rawName string, data []byte) (*UploadResult, error) {
	name, err := storage.SanitizeName(rawName)
	if err != nil {
		return nil, err
	}
	if isQuarantined(name) {
		return nil, common.ErrInvalidName
	}
	action := "upload:" + name

	assessment, err := s.scorer.Score(ctx, risk.Input{Owner: p.User, Filename: name, Data: data})
	if err != nil {
		s.auditor.Record(ctx, p.User, action, audit.StatusFailed)
		return nil, fmt.Errorf("error scoring upload: %w", err)
	}

	res := &UploadResult{Name: name, Assessment: assessment}
	if assessment.Score >= risk.RevokeThreshold {
		if err := s.tokens.Revoke(ctx, p); err != nil {
			s.logger.Error(ctx, "revocation after risky upload failed", "user", p.User, "error", err)
		} else {
			res.Revoked = true
			s.auditor.Record(ctx, p.User, action, audit.StatusRevoked)
		}
	}

	ciphertext, err := s.vault.Encrypt(data)
	if err != nil {
		s.auditor.Record(ctx, p.User, action, audit.StatusFailed)
		return nil, fmt.Errorf("error encrypting upload: %w", err)
	}

	// the previous version is kept in memory so a failed metadata write
	// can put it back
	previous, err := s.store.Read(ctx, p.User, name)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		previous = nil
	case err != nil:
		s.auditor.Record(ctx, p.User, action, audit.StatusFailed)
		return nil, fmt.Errorf("error reading previous version: %w", err)
	}

	if err := s.store.Save(ctx, p.User, name, ciphertext); err != nil {
		s.auditor.Record(ctx, p.User, action, audit.StatusFailed)
		return nil, err
	}

	meta := &models.FileMetadata{
		Filename:  name,
		Owner:     p.User,
		Size:      int64(len(data)),
		MimeType:  http.DetectContentType(data),
		RiskScore: assessment.Score,
		Analysis:  assessment.Analysis,
		Active:    true,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)
		if err := repo.DeleteByName(ctx, p.User, name); err != nil {
			return err
		}
		_, err := repo.Create(ctx, meta)
		return err
	})
	if err != nil {
		s.rollbackBlob(ctx, p.User, name, previous)
		s.auditor.Record(ctx, p.User, action, audit.StatusFailed)
		return nil, fmt.Errorf("error saving metadata: %w", err)
	}

	s.auditor.Record(ctx, p.User, action, audit.StatusSuccess)
	return res, nil
}

// rollbackBlob undoes a Save whose metadata write failed: the previous
// version is restored, or the new blob removed when there was none.
func (s *FileService) rollbackBlob(ctx context.Context, owner, name string, previous []byte) {
	if previous != nil {
		if err := s.store.Save(ctx, owner, name, previous); err != nil {
			s.logger.Error(ctx, "previous version not restored after metadata failure", "user", owner, "file", name, "error", err)
		}
		return
	}
	if err := s.store.Delete(ctx, owner, name); err != nil {
		s.logger.Error(ctx, "orphaned blob after metadata failure", "user", owner, "file", name, "error", err)
	}
}

// Download returns the decrypted content. Quarantined files are not
// downloadable.
func (s *FileService) Download(ctx context.Context, owner, name string) ([]byte, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if isQuarantined(name) {
		return nil, common.ErrorNotFound
	}
	action := "download:" + name

	ciphertext, err := s.store.Read(ctx, owner, name)
	if err != nil {
		s.auditor.Record(ctx, owner, action, audit.StatusFailed)
		return nil, err
	}

	plaintext, err := s.vault.Decrypt(ciphertext)
	if err != nil {
		s.logger.Error(ctx, "stored blob failed to decrypt", "user", owner, "file", name, "error", err)
		s.auditor.Record(ctx, owner, action, audit.StatusFailed)
		return nil, err
	}

	s.auditor.Record(ctx, owner, action, audit.StatusSuccess)
	return plaintext, nil
}

// List returns the owner's file names, without quarantined ones.
func (s *FileService) List(ctx context.Context, owner string) ([]string, error) {
	all, err := s.store.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if !isQuarantined(n) {
			names = append(names, n)
		}
	}
	return names, nil
}

// DeleteAccount re-checks the password before removing everything the user
// owns.
func (s *FileService) DeleteAccount(ctx context.Context, username, password string) error {
	ok, err := s.credentials.VerifyPassword(ctx, username, password)
	if err != nil {
		return err
	}
	if !ok {
		s.auditor.Record(ctx, username, "delete_account", audit.StatusFailed)
		return common.ErrInvalidCredentials
	}
	return s.PurgeAccount(ctx, username)
}

// PurgeAccount deletes every blob of the user, then the user row. Metadata
// rows go with the user through the foreign key.
func (s *FileService) PurgeAccount(ctx context.Context, username string) error {
	names, err := s.store.List(ctx, username)
	if err != nil {
		s.auditor.Record(ctx, username, "delete_account", audit.StatusFailed)
		return err
	}

	var errs []error
	for _, n := range names {
		if err := s.store.Delete(ctx, username, n); err != nil && !errors.Is(err, common.ErrorNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.auditor.Record(ctx, username, "delete_account", audit.StatusFailed)
		return errors.Join(errs...)
	}

	deleted, err := s.credentials.DeleteUser(ctx, username)
	if err != nil {
		s.auditor.Record(ctx, username, "delete_account", audit.StatusFailed)
		return fmt.Errorf("error deleting user: %w", err)
	}
	if !deleted {
		return common.ErrorNotFound
	}

	s.auditor.Record(ctx, username, "delete_account", audit.StatusSuccess)
	return nil
}
