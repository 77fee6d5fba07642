// issue_token 为指定用户签发访问令牌与刷新令牌，供本地调试和外部身份服务对接使用
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"promptlib/internal/auth"
	"promptlib/internal/config"
)

func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	configPath := flag.String("config", "", "配置文件路径（可选）")
	userID := flag.String("user", "", "用户 ID")
	flag.Parse()

	if *userID == "" {
		log.Fatal("必须指定 -user")
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret 未配置")
	}

	// 签发不需要黑名单
	svc := auth.NewJWTService(cfg.Auth, nil)
	pair, err := svc.GenerateTokenPair(*userID)
	if err != nil {
		log.Fatalf("签发令牌失败: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pair); err != nil {
		log.Fatalf("输出令牌失败: %v", err)
	}
}
