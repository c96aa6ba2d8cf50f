// templatectl はSESメールテンプレートを管理するCLIツール。
// 検証メールや通知メールのテンプレートをJSONファイルから登録・更新する。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/spf13/cobra"
)

// templateFile はテンプレート定義のJSONファイル形式。
type templateFile struct {
	TemplateName string `json:"TemplateName"`
	SubjectPart  string `json:"SubjectPart"`
	HTMLPart     string `json:"HtmlPart"`
	TextPart     string `json:"TextPart"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand はtemplatectlのルートコマンドを生成する。
func newRootCommand() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:           "templatectl",
		Short:         "SESメールテンプレートの管理",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&region, "region", "us-east-1", "AWSリージョン")

	cmd.AddCommand(newCreateCommand(&region))
	cmd.AddCommand(newUpdateCommand(&region))
	cmd.AddCommand(newListCommand(&region))
	cmd.AddCommand(newDeleteCommand(&region))

	return cmd
}

// newSESClient は環境変数の認証情報からSESクライアントを生成する。
func newSESClient(ctx context.Context, region string) (*ses.Client, error) {
	accessKeyID := os.Getenv("AWS_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_IDとAWS_SECRET_ACCESS_KEYを設定してください")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	return ses.NewFromConfig(cfg), nil
}

// loadTemplateFile はJSONファイルからテンプレート定義を読み込む。
func loadTemplateFile(path string) (*types.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("テンプレートファイルの読み込みに失敗しました: %w", err)
	}

	var tmpl templateFile
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("テンプレートファイルの解析に失敗しました: %w", err)
	}
	if tmpl.TemplateName == "" {
		return nil, fmt.Errorf("TemplateNameは必須です")
	}

	return &types.Template{
		TemplateName: aws.String(tmpl.TemplateName),
		SubjectPart:  aws.String(tmpl.SubjectPart),
		HtmlPart:     aws.String(tmpl.HTMLPart),
		TextPart:     aws.String(tmpl.TextPart),
	}, nil
}

// newCreateCommand はテンプレート作成コマンドを生成する。
func newCreateCommand(region *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <template.json>",
		Short: "JSONファイルから新しいテンプレートを作成する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := newSESClient(ctx, *region)
			if err != nil {
				return err
			}

			tmpl, err := loadTemplateFile(args[0])
			if err != nil {
				return err
			}

			_, err = client.CreateTemplate(ctx, &ses.CreateTemplateInput{Template: tmpl})
			if err != nil {
				return fmt.Errorf("テンプレートの作成に失敗しました: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", *tmpl.TemplateName)
			return nil
		},
	}
}

// newUpdateCommand はテンプレート更新コマンドを生成する。
func newUpdateCommand(region *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update <template.json>",
		Short: "JSONファイルから既存テンプレートを更新する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := newSESClient(ctx, *region)
			if err != nil {
				return err
			}

			tmpl, err := loadTemplateFile(args[0])
			if err != nil {
				return err
			}

			_, err = client.UpdateTemplate(ctx, &ses.UpdateTemplateInput{Template: tmpl})
			if err != nil {
				return fmt.Errorf("テンプレートの更新に失敗しました: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", *tmpl.TemplateName)
			return nil
		},
	}
}

// newListCommand はテンプレート一覧コマンドを生成する。
// ページネーションをたどって全テンプレート名を出力する。
func newListCommand(region *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "登録済みテンプレートの一覧を表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := newSESClient(ctx, *region)
			if err != nil {
				return err
			}

			var nextToken *string
			for {
				resp, err := client.ListTemplates(ctx, &ses.ListTemplatesInput{
					NextToken: nextToken,
				})
				if err != nil {
					return fmt.Errorf("テンプレート一覧の取得に失敗しました: %w", err)
				}

				for _, meta := range resp.TemplatesMetadata {
					if meta.Name != nil {
						fmt.Fprintln(cmd.OutOrStdout(), *meta.Name)
					}
				}

				nextToken = resp.NextToken
				if nextToken == nil {
					return nil
				}
			}
		},
	}
}

// newDeleteCommand はテンプレート削除コマンドを生成する。
func newDeleteCommand(region *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "テンプレートを削除する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := newSESClient(ctx, *region)
			if err != nil {
				return err
			}

			_, err = client.DeleteTemplate(ctx, &ses.DeleteTemplateInput{
				TemplateName: aws.String(args[0]),
			})
			if err != nil {
				return fmt.Errorf("テンプレートの削除に失敗しました: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
