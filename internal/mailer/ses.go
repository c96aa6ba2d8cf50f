// Package mailer はSESテンプレートメールの送信を提供する。
package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// テンプレート名。SES側のテンプレートはcmd/templatectlで管理する。
const (
	TemplateVerifyEmail      = "inbox-verify"
	TemplateJoinedDao        = "inbox-joined_dao"
	TemplateProposalCreated  = "inbox-proposal_created"
	TemplateProposalExecuted = "inbox-proposal_executed"
	TemplateProposalClosed   = "inbox-proposal_closed"
)

// SESMailer はAWS SESを使用したテンプレートメール送信クライアント。
// 起動時に1回だけ生成し、プロセス全体で共有する。
type SESMailer struct {
	client *ses.Client
	source string
}

// Config はSESMailerの生成に必要な設定。
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Source は送信元アドレス（例: "DAO Notifier <notify@inbox.example.zone>"）。
	Source string
}

// NewSESMailer はSESクライアントを初期化してSESMailerを生成する。
func NewSESMailer(ctx context.Context, cfg Config) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	return &SESMailer{
		client: ses.NewFromConfig(awsCfg),
		source: cfg.Source,
	}, nil
}

// SendTemplated はテンプレートメールを1通送信する。
// variablesはJSONにシリアライズしてSESのTemplateDataとして渡す。
func (m *SESMailer) SendTemplated(ctx context.Context, to, template string, variables map[string]any) error {
	data, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("テンプレート変数のシリアライズに失敗しました: %w", err)
	}

	_, err = m.client.SendTemplatedEmail(ctx, &ses.SendTemplatedEmailInput{
		Source: aws.String(m.source),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Template:     aws.String(template),
		TemplateData: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("テンプレートメールの送信に失敗しました: %w", err)
	}

	return nil
}
