// Command folio はブログ記事とメール購読を提供するAPIサーバー。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	worker       Redisキューから通知ジョブを取り出してメールを送信する
//	migrate      データベースマイグレーションを適用する
//	healthcheck  /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/likheet/folio/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "folio: %v\n", err)
		os.Exit(1)
	}
}
