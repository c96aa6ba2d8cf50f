// Package dispatch は受理されたイベントの複数チャネルへのファンアウトを提供する。
package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/inboxd/internal/mailer"
	"github.com/hitoshi/inboxd/internal/model"
)

// EmailMessage はレンダリング済みのメール通知。
type EmailMessage struct {
	Template  string
	Variables map[string]any
}

// templateEntry はイベント種別1つ分のレンダリング定義。
// 必須フィールドが欠けたペイロードは該当チャネルを静かにスキップする
// （プロデューサー側のペイロード進化を許容する意図的な寛容ポリシー）。
type templateEntry struct {
	requiredFields []string
	renderEmail    func(r *Renderer, data map[string]any) *EmailMessage
	renderPush     func(r *Renderer, data map[string]any) *model.PushPayload
}

// templates はイベント種別からレンダリング定義への閉じたテーブル。
// 種別を追加する場合はここに1エントリ追加する（分岐を増やさない）。
var templates = map[model.EventType]templateEntry{
	model.EventTypeJoinedDao: {
		requiredFields: []string{"chainId", "dao", "name"},
		renderEmail: func(r *Renderer, data map[string]any) *EmailMessage {
			name := r.sanitize(stringField(data, "name"))
			return &EmailMessage{
				Template: mailer.TemplateJoinedDao,
				Variables: map[string]any{
					"name":     name,
					"imageUrl": r.imageURL(data),
					"url":      fmt.Sprintf("%s/dao/%s", r.siteBaseURL, stringField(data, "dao")),
				},
			}
		},
		renderPush: func(r *Renderer, data map[string]any) *model.PushPayload {
			name := r.sanitize(stringField(data, "name"))
			return &model.PushPayload{
				Title:    name,
				Message:  fmt.Sprintf("You've been added to %s. Follow it to receive notifications.", name),
				ImageURL: r.rewriteIPFS(stringField(data, "imageUrl")),
				DeepLink: &model.PushDeepLink{
					Type:        "dao",
					CoreAddress: stringField(data, "dao"),
				},
			}
		},
	},
	model.EventTypeProposalCreated: {
		requiredFields: []string{"chainId", "dao", "daoName", "proposalId", "proposalTitle"},
		renderEmail: func(r *Renderer, data map[string]any) *EmailMessage {
			return &EmailMessage{
				Template:  mailer.TemplateProposalCreated,
				Variables: r.proposalVariables(data),
			}
		},
		renderPush: func(r *Renderer, data map[string]any) *model.PushPayload {
			payload := r.proposalPushPayload(data)
			payload.Message = fmt.Sprintf("New Proposal: %s", r.sanitize(stringField(data, "proposalTitle")))
			return payload
		},
	},
	model.EventTypeProposalExecuted: {
		requiredFields: []string{"chainId", "dao", "daoName", "proposalId", "proposalTitle", "failed"},
		renderEmail: func(r *Renderer, data map[string]any) *EmailMessage {
			status := "Executed"
			if boolField(data, "failed") {
				status = "Execution Failed"
			}
			variables := r.proposalVariables(data)
			variables["status"] = status
			variables["statusLowerCase"] = strings.ToLower(status)
			return &EmailMessage{
				Template:  mailer.TemplateProposalExecuted,
				Variables: variables,
			}
		},
		renderPush: func(r *Renderer, data map[string]any) *model.PushPayload {
			status := "Executed"
			if boolField(data, "failed") {
				status = "Execution Failed"
			}
			message := fmt.Sprintf("Proposal Passed and %s: %s", status, r.sanitize(stringField(data, "proposalTitle")))
			if winning := stringField(data, "winningOption"); winning != "" {
				message += fmt.Sprintf(" (outcome: %s)", r.sanitize(winning))
			}
			payload := r.proposalPushPayload(data)
			payload.Message = message
			return payload
		},
	},
	model.EventTypeProposalClosed: {
		requiredFields: []string{"chainId", "dao", "daoName", "proposalId", "proposalTitle"},
		renderEmail: func(r *Renderer, data map[string]any) *EmailMessage {
			return &EmailMessage{
				Template:  mailer.TemplateProposalClosed,
				Variables: r.proposalVariables(data),
			}
		},
		renderPush: func(r *Renderer, data map[string]any) *model.PushPayload {
			payload := r.proposalPushPayload(data)
			payload.Message = fmt.Sprintf("Proposal Rejected and Closed: %s", r.sanitize(stringField(data, "proposalTitle")))
			return payload
		},
	},
}

// Renderer はテンプレートテーブルに従ってチャネル別メッセージを生成する。
// ペイロード由来の文字列はHTMLを除去してからテンプレートに渡す。
type Renderer struct {
	policy          *bluemonday.Policy
	siteBaseURL     string
	ipfsGatewayBase string
	defaultImageURL string
}

// NewRenderer はRendererを生成する。
func NewRenderer(siteBaseURL, ipfsGatewayBase, defaultImageURL string) *Renderer {
	return &Renderer{
		policy:          bluemonday.StrictPolicy(),
		siteBaseURL:     strings.TrimSuffix(siteBaseURL, "/"),
		ipfsGatewayBase: ipfsGatewayBase,
		defaultImageURL: defaultImageURL,
	}
}

// RenderEmail はイベントのメール通知をレンダリングする。
// 未知の種別、または必須フィールドが欠けている場合はnilを返す（スキップ）。
func (r *Renderer) RenderEmail(eventType model.EventType, data map[string]any) *EmailMessage {
	entry, ok := templates[eventType]
	if !ok || !hasRequiredFields(data, entry.requiredFields) {
		return nil
	}
	return entry.renderEmail(r, data)
}

// RenderPush はイベントのプッシュ通知をレンダリングする。
// 未知の種別、または必須フィールドが欠けている場合はnilを返す（スキップ）。
func (r *Renderer) RenderPush(eventType model.EventType, data map[string]any) *model.PushPayload {
	entry, ok := templates[eventType]
	if !ok || !hasRequiredFields(data, entry.requiredFields) {
		return nil
	}
	return entry.renderPush(r, data)
}

// proposalVariables はプロポーザル系テンプレートの共通変数を生成する。
func (r *Renderer) proposalVariables(data map[string]any) map[string]any {
	proposalID := scalarField(data, "proposalId")
	return map[string]any{
		"url":           fmt.Sprintf("%s/dao/%s/proposals/%s", r.siteBaseURL, stringField(data, "dao"), proposalID),
		"daoName":       r.sanitize(stringField(data, "daoName")),
		"imageUrl":      r.imageURL(data),
		"proposalId":    proposalID,
		"proposalTitle": r.sanitize(stringField(data, "proposalTitle")),
	}
}

// proposalPushPayload はプロポーザル系プッシュ通知の共通部分を生成する。
func (r *Renderer) proposalPushPayload(data map[string]any) *model.PushPayload {
	return &model.PushPayload{
		Title:    r.sanitize(stringField(data, "daoName")),
		ImageURL: r.rewriteIPFS(stringField(data, "imageUrl")),
		DeepLink: &model.PushDeepLink{
			Type:        "proposal",
			CoreAddress: stringField(data, "dao"),
			ProposalID:  scalarField(data, "proposalId"),
		},
	}
}

// imageURL はペイロードの画像URLを解決する。未指定の場合はデフォルト画像を使う。
func (r *Renderer) imageURL(data map[string]any) string {
	u := stringField(data, "imageUrl")
	if u == "" {
		return r.defaultImageURL
	}
	return r.rewriteIPFS(u)
}

// rewriteIPFS はipfs://スキームの画像参照をHTTPゲートウェイURLに書き換える。
func (r *Renderer) rewriteIPFS(u string) string {
	if strings.HasPrefix(u, "ipfs://") {
		return r.ipfsGatewayBase + strings.TrimPrefix(u, "ipfs://")
	}
	return u
}

// sanitize はペイロード由来の文字列からHTMLを除去する。
func (r *Renderer) sanitize(s string) string {
	return r.policy.Sanitize(s)
}

// hasRequiredFields は必須フィールドがすべて非nilで存在するかを返す。
func hasRequiredFields(data map[string]any, fields []string) bool {
	for _, field := range fields {
		v, ok := data[field]
		if !ok || v == nil {
			return false
		}
	}
	return true
}

// stringField はペイロードから文字列フィールドを取り出す。
func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// boolField はペイロードから真偽値フィールドを取り出す。
func boolField(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

// scalarField は文字列または数値のフィールドを文字列化して取り出す。
// プロポーザルIDはプロデューサーによって数値でも文字列でも送られる。
func scalarField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
