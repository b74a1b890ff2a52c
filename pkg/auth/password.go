package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节.
const maxPasswordBytes = 72

// HashPassword 生成带盐 bcrypt 哈希.
func HashPassword(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword(truncate(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(h), nil
}

// CheckPassword 校验明文与哈希是否匹配.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}

	return b
}
