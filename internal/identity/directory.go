package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// Expander はアイデンティティの展開インターフェース。
// ディスパッチャーが受信者集合の解決に使用する。
type Expander interface {
	// Expand は同一プロファイルに紐づく全アイデンティティを返す。
	// 結果は重複排除済みで、必ず入力のidentityを含む。
	// ディレクトリ障害時は {identity} にフォールバックし、エラーは返さない。
	Expand(ctx context.Context, identity string) []string
}

// maxDirectoryResponseSize はディレクトリレスポンスの最大読み取りサイズ。
const maxDirectoryResponseSize = 1 << 20 // 1MiB

// DirectoryClient は外部プロファイルディレクトリへの問い合わせクライアント。
// SSRF防止付きHTTPクライアントを使用する。
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// directoryResponse はディレクトリAPIのレスポンス形式。
type directoryResponse struct {
	Accounts []struct {
		Bech32Hash string `json:"bech32Hash"`
	} `json:"accounts"`
}

// NewDirectoryClient はDirectoryClientを生成する。
// baseURLが空の場合、Expandは常に単一アイデンティティを返す。
func NewDirectoryClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DirectoryClient {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &DirectoryClient{
		baseURL:    baseURL,
		httpClient: safeurl.Client(config).Client,
		logger:     logger,
	}
}

// Expand は同一プロファイルに紐づく全アイデンティティを返す。
// ディレクトリが利用できない場合やレスポンスが不正な場合は
// 警告ログを出力して {identity} を返す。呼び出し元を失敗させることはない。
func (c *DirectoryClient) Expand(ctx context.Context, identity string) []string {
	fallback := []string{identity}
	if c.baseURL == "" {
		return fallback
	}

	reqURL := fmt.Sprintf("%s/address/%s/accounts", c.baseURL, identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Warn("ディレクトリリクエストの生成に失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("ディレクトリへの問い合わせに失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ディレクトリが異常ステータスを返しました",
			slog.String("identity", identity),
			slog.Int("status", resp.StatusCode),
		)
		return fallback
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectoryResponseSize))
	if err != nil {
		c.logger.Warn("ディレクトリレスポンスの読み取りに失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	var parsed directoryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("ディレクトリレスポンスのパースに失敗しました",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return fallback
	}

	// 入力のidentityを必ず含め、順序を保ちながら重複排除する
	seen := map[string]bool{identity: true}
	result := []string{identity}
	for _, account := range parsed.Accounts {
		if account.Bech32Hash == "" || seen[account.Bech32Hash] {
			continue
		}
		seen[account.Bech32Hash] = true
		result = append(result, account.Bech32Hash)
	}

	return result
}
