// Package main 启动应用程序
package main

import (
	"fmt"
	"os"

	"github.com/yeisme/fileparser/pkg/cmd"
)

//	@title			File Parser API
//	@version		2.0.0
//	@description	上传 CSV、Excel、PDF、JSON 与文本文件，异步解析并通过 WebSocket 推送进度。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer 访问令牌，格式为 "Bearer {token}"

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
