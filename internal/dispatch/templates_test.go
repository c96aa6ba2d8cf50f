package dispatch

import (
	"strings"
	"testing"

	"github.com/hitoshi/inboxd/internal/mailer"
	"github.com/hitoshi/inboxd/internal/model"
)

// --- テスト ---

func newTestRenderer() *Renderer {
	return NewRenderer(
		"https://daodao.zone",
		"https://ipfs.example.com/ipfs/",
		"https://daodao.zone/daodao.png",
	)
}

func joinedDaoData() map[string]any {
	return map[string]any{
		"chainId": "juno-1",
		"dao":     "juno1dao",
		"name":    "Test DAO",
	}
}

func proposalData() map[string]any {
	return map[string]any{
		"chainId":       "juno-1",
		"dao":           "juno1dao",
		"daoName":       "Test DAO",
		"proposalId":    "A1",
		"proposalTitle": "Fund the treasury",
	}
}

// TestRenderer_RenderEmail_JoinedDao はDAO参加イベントのメール変数を検証する。
func TestRenderer_RenderEmail_JoinedDao(t *testing.T) {
	msg := newTestRenderer().RenderEmail(model.EventTypeJoinedDao, joinedDaoData())
	if msg == nil {
		t.Fatal("RenderEmail returned nil")
	}
	if msg.Template != mailer.TemplateJoinedDao {
		t.Errorf("template = %q, want %q", msg.Template, mailer.TemplateJoinedDao)
	}
	if msg.Variables["name"] != "Test DAO" {
		t.Errorf("name = %v, want Test DAO", msg.Variables["name"])
	}
	if msg.Variables["url"] != "https://daodao.zone/dao/juno1dao" {
		t.Errorf("url = %v", msg.Variables["url"])
	}
	// imageUrl未指定の場合はデフォルト画像
	if msg.Variables["imageUrl"] != "https://daodao.zone/daodao.png" {
		t.Errorf("imageUrl = %v, want default", msg.Variables["imageUrl"])
	}
}

// TestRenderer_RenderEmail_ProposalCreated はプロポーザル作成イベントのメール変数を検証する。
func TestRenderer_RenderEmail_ProposalCreated(t *testing.T) {
	msg := newTestRenderer().RenderEmail(model.EventTypeProposalCreated, proposalData())
	if msg == nil {
		t.Fatal("RenderEmail returned nil")
	}
	if msg.Template != mailer.TemplateProposalCreated {
		t.Errorf("template = %q, want %q", msg.Template, mailer.TemplateProposalCreated)
	}
	if msg.Variables["url"] != "https://daodao.zone/dao/juno1dao/proposals/A1" {
		t.Errorf("url = %v", msg.Variables["url"])
	}
	if msg.Variables["daoName"] != "Test DAO" {
		t.Errorf("daoName = %v", msg.Variables["daoName"])
	}
	if msg.Variables["proposalTitle"] != "Fund the treasury" {
		t.Errorf("proposalTitle = %v", msg.Variables["proposalTitle"])
	}
}

// TestRenderer_RenderEmail_ProposalExecuted は実行結果に応じたステータス変数を検証する。
func TestRenderer_RenderEmail_ProposalExecuted(t *testing.T) {
	cases := []struct {
		name       string
		failed     bool
		wantStatus string
	}{
		{"成功", false, "Executed"},
		{"失敗", true, "Execution Failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := proposalData()
			data["failed"] = tc.failed

			msg := newTestRenderer().RenderEmail(model.EventTypeProposalExecuted, data)
			if msg == nil {
				t.Fatal("RenderEmail returned nil")
			}
			if msg.Variables["status"] != tc.wantStatus {
				t.Errorf("status = %v, want %q", msg.Variables["status"], tc.wantStatus)
			}
			if msg.Variables["statusLowerCase"] != strings.ToLower(tc.wantStatus) {
				t.Errorf("statusLowerCase = %v", msg.Variables["statusLowerCase"])
			}
		})
	}
}

// TestRenderer_RenderPush_ProposalExecuted_WinningOption は採択結果サフィックスを検証する。
func TestRenderer_RenderPush_ProposalExecuted_WinningOption(t *testing.T) {
	data := proposalData()
	data["failed"] = false
	data["winningOption"] = "Yes"

	payload := newTestRenderer().RenderPush(model.EventTypeProposalExecuted, data)
	if payload == nil {
		t.Fatal("RenderPush returned nil")
	}
	want := "Proposal Passed and Executed: Fund the treasury (outcome: Yes)"
	if payload.Message != want {
		t.Errorf("message = %q, want %q", payload.Message, want)
	}
	if payload.DeepLink == nil || payload.DeepLink.Type != "proposal" || payload.DeepLink.ProposalID != "A1" {
		t.Errorf("deep link = %+v", payload.DeepLink)
	}
}

// TestRenderer_RenderPush_JoinedDao はDAO参加イベントのプッシュ通知を検証する。
func TestRenderer_RenderPush_JoinedDao(t *testing.T) {
	payload := newTestRenderer().RenderPush(model.EventTypeJoinedDao, joinedDaoData())
	if payload == nil {
		t.Fatal("RenderPush returned nil")
	}
	if payload.Title != "Test DAO" {
		t.Errorf("title = %q", payload.Title)
	}
	if !strings.Contains(payload.Message, "You've been added to Test DAO") {
		t.Errorf("message = %q", payload.Message)
	}
	if payload.DeepLink == nil || payload.DeepLink.Type != "dao" || payload.DeepLink.CoreAddress != "juno1dao" {
		t.Errorf("deep link = %+v", payload.DeepLink)
	}
}

// TestRenderer_IPFSRewrite はipfs://参照がゲートウェイURLに書き換わることを検証する。
func TestRenderer_IPFSRewrite(t *testing.T) {
	data := joinedDaoData()
	data["imageUrl"] = "ipfs://QmHash/logo.png"

	msg := newTestRenderer().RenderEmail(model.EventTypeJoinedDao, data)
	if msg == nil {
		t.Fatal("RenderEmail returned nil")
	}
	want := "https://ipfs.example.com/ipfs/QmHash/logo.png"
	if msg.Variables["imageUrl"] != want {
		t.Errorf("imageUrl = %v, want %q", msg.Variables["imageUrl"], want)
	}
}

// TestRenderer_MissingRequiredFields は必須フィールド欠落時にnilを返すことを検証する。
func TestRenderer_MissingRequiredFields(t *testing.T) {
	data := proposalData()
	delete(data, "proposalTitle")

	r := newTestRenderer()
	if msg := r.RenderEmail(model.EventTypeProposalCreated, data); msg != nil {
		t.Errorf("RenderEmail = %+v, want nil", msg)
	}
	if payload := r.RenderPush(model.EventTypeProposalCreated, data); payload != nil {
		t.Errorf("RenderPush = %+v, want nil", payload)
	}

	// nil値も欠落として扱う
	data["proposalTitle"] = nil
	if msg := r.RenderEmail(model.EventTypeProposalCreated, data); msg != nil {
		t.Errorf("RenderEmail with nil field = %+v, want nil", msg)
	}
}

// TestRenderer_UnknownEventType は未知の種別にnilを返すことを検証する。
func TestRenderer_UnknownEventType(t *testing.T) {
	r := newTestRenderer()
	if msg := r.RenderEmail(model.EventType("price_alert"), joinedDaoData()); msg != nil {
		t.Errorf("RenderEmail = %+v, want nil", msg)
	}
	if payload := r.RenderPush(model.EventType("price_alert"), joinedDaoData()); payload != nil {
		t.Errorf("RenderPush = %+v, want nil", payload)
	}
}

// TestRenderer_Sanitize はペイロード由来文字列のHTMLが除去されることを検証する。
func TestRenderer_Sanitize(t *testing.T) {
	data := joinedDaoData()
	data["name"] = `<script>alert(1)</script>Safe DAO`

	msg := newTestRenderer().RenderEmail(model.EventTypeJoinedDao, data)
	if msg == nil {
		t.Fatal("RenderEmail returned nil")
	}
	if got := msg.Variables["name"]; got != "Safe DAO" {
		t.Errorf("name = %q, want %q", got, "Safe DAO")
	}
}

// TestRenderer_NumericProposalID は数値のproposalIdが文字列化されることを検証する。
func TestRenderer_NumericProposalID(t *testing.T) {
	data := proposalData()
	data["proposalId"] = float64(42)

	msg := newTestRenderer().RenderEmail(model.EventTypeProposalCreated, data)
	if msg == nil {
		t.Fatal("RenderEmail returned nil")
	}
	if msg.Variables["proposalId"] != "42" {
		t.Errorf("proposalId = %v, want \"42\"", msg.Variables["proposalId"])
	}
	if !strings.HasSuffix(msg.Variables["url"].(string), "/proposals/42") {
		t.Errorf("url = %v", msg.Variables["url"])
	}
}
