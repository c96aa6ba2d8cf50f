// Package email はメールアドレスの検証状態機械を提供する。
// 状態は Unset → Pending → Verified と遷移し、Pending→Pending（再発行）と
// 任意の状態→Unset（クリア）も許容する。
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/inboxd/internal/mailer"
	"github.com/hitoshi/inboxd/internal/model"
	"github.com/hitoshi/inboxd/internal/repository"
)

// VerificationWindow は検証コードの有効期間。
const VerificationWindow = 3 * 24 * time.Hour

// Mailer はメール送信のインターフェース。実装はmailerパッケージが提供する。
type Mailer interface {
	SendTemplated(ctx context.Context, to, template string, variables map[string]any) error
}

// Service はアイデンティティごとに最大1件のメールレコードを管理する。
// read-modify-writeはアトミックではない（既知の弱一貫性、§同時実行モデル参照）。
type Service struct {
	kv            repository.KVRepository
	mailer        Mailer
	verifyBaseURL string
	logger        *slog.Logger
	now           func() time.Time // テストで時刻を差し替えるためのフック
}

// NewService はServiceを生成する。
func NewService(kv repository.KVRepository, m Mailer, verifyBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		kv:            kv,
		mailer:        m,
		verifyBaseURL: verifyBaseURL,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEmail はメールアドレスを設定し、検証メールを送信する。
// 新しい単回使用コードを発行してPending状態で保存する。
// 既存のコードは上書きによって即座に無効化される。
func (s *Service) SetEmail(ctx context.Context, identity, address string) error {
	code := uuid.NewString()
	metadata, err := json.Marshal(model.EmailMetadata{
		VerificationCode:   &code,
		VerificationSentAt: s.now().UnixMilli(),
		VerifiedAt:         nil,
	})
	if err != nil {
		return fmt.Errorf("メールメタデータのシリアライズに失敗しました: %w", err)
	}

	if err := s.kv.Put(ctx, repository.EmailKey(identity), address, metadata); err != nil {
		return fmt.Errorf("メールレコードの保存に失敗しました: %w", err)
	}

	days := int(VerificationWindow / (24 * time.Hour))
	err = s.mailer.SendTemplated(ctx, address, mailer.TemplateVerifyEmail, map[string]any{
		"url":            fmt.Sprintf("%s?code=%s", s.verifyBaseURL, code),
		"expirationTime": fmt.Sprintf("%d days", days),
	})
	if err != nil {
		return fmt.Errorf("検証メールの送信に失敗しました: %w", err)
	}

	return nil
}

// Clear はメールレコードを無条件に削除し、Unset状態に戻す。
func (s *Service) Clear(ctx context.Context, identity string) error {
	if err := s.kv.Delete(ctx, repository.EmailKey(identity)); err != nil {
		return fmt.Errorf("メールレコードの削除に失敗しました: %w", err)
	}
	return nil
}

// Verify は検証コードを消費してVerified状態に遷移させる。
// 失敗はAPIErrorとして返す: レコードなし、メタデータ破損、コード不一致、期限切れ。
// 成功時はコードをクリアし検証時刻を記録する。
func (s *Service) Verify(ctx context.Context, identity, code string) error {
	address, metadata, err := s.Record(ctx, identity)
	if err != nil {
		return err
	}
	if address == "" {
		return model.NewEmailNotFoundError()
	}
	if metadata == nil {
		return model.NewInvalidMetadataError()
	}

	if metadata.VerificationCode == nil || *metadata.VerificationCode != code {
		return model.NewInvalidCodeError()
	}

	sentAt := time.UnixMilli(metadata.VerificationSentAt)
	if s.now().After(sentAt.Add(VerificationWindow)) {
		return model.NewCodeExpiredError()
	}

	verifiedAt := s.now().UnixMilli()
	updated, err := json.Marshal(model.EmailMetadata{
		VerificationCode:   nil,
		VerificationSentAt: metadata.VerificationSentAt,
		VerifiedAt:         &verifiedAt,
	})
	if err != nil {
		return fmt.Errorf("メールメタデータのシリアライズに失敗しました: %w", err)
	}

	if err := s.kv.Put(ctx, repository.EmailKey(identity), address, updated); err != nil {
		return fmt.Errorf("メールレコードの更新に失敗しました: %w", err)
	}

	return nil
}

// GetVerified は検証済みのメールアドレスを返す。
// レコードが存在しない、未検証、またはメタデータが破損している場合は空文字列を返す。
func (s *Service) GetVerified(ctx context.Context, identity string) (string, error) {
	address, metadata, err := s.Record(ctx, identity)
	if err != nil {
		return "", err
	}
	if address == "" || !metadata.Verified() {
		return "", nil
	}
	return address, nil
}

// Record はメールレコードの生の状態を返す。
// レコードが存在しない場合は("", nil, nil)。
// メタデータが構造的に破損している場合は(address, nil, nil)を返し、
// 呼び出し側が破損として扱えるようにする。
func (s *Service) Record(ctx context.Context, identity string) (string, *model.EmailMetadata, error) {
	entry, err := s.kv.Get(ctx, repository.EmailKey(identity))
	if err != nil {
		return "", nil, fmt.Errorf("メールレコードの取得に失敗しました: %w", err)
	}
	if entry == nil {
		return "", nil, nil
	}

	if entry.Metadata == nil {
		return entry.Value, nil, nil
	}

	var metadata model.EmailMetadata
	if err := json.Unmarshal(entry.Metadata, &metadata); err != nil {
		s.logger.Warn("メールメタデータのパースに失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return entry.Value, nil, nil
	}
	if metadata.VerificationSentAt == 0 {
		// 必須フィールド欠落は構造的破損として扱う
		return entry.Value, nil, nil
	}

	return entry.Value, &metadata, nil
}

// Resend はPending状態のアドレスに対して検証メールを再送する。
// 現在のアドレスで新しいコードを発行し、古いコードを無効化する。
// レコードがない、またはすでに検証済みの場合は何もしない。
func (s *Service) Resend(ctx context.Context, identity string) error {
	address, metadata, err := s.Record(ctx, identity)
	if err != nil {
		return err
	}
	if address == "" || metadata.Verified() {
		return nil
	}
	return s.SetEmail(ctx, identity, address)
}
