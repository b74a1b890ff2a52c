package rule_test

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/fileparser/pkg/rule"
)

// signup 模拟注册请求体.
type signup struct {
	Username string `json:"username" rule:"required,min=3,max=50,username"`
	Password string `json:"password" rule:"required,min=8,max=100"`
	Email    string `json:"email"    rule:"omitempty,email"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	if rule.Engine() == nil {
		t.Error("Engine() returned nil")
	}
}

// TestValidateStruct 测试 ValidateStruct 对有效和无效结构体的验证.
func TestValidateStruct(t *testing.T) {
	if err := rule.ValidateStruct(signup{Username: "alice", Password: "supersecret"}); err != nil {
		t.Errorf("Expected no error for valid struct, got %v", err)
	}

	cases := map[string]signup{
		"short username":  {Username: "ab", Password: "supersecret"},
		"bad characters":  {Username: "al ice", Password: "supersecret"},
		"short password":  {Username: "alice", Password: "short"},
		"malformed email": {Username: "alice", Password: "supersecret", Email: "nope"},
	}

	for name, c := range cases {
		if err := rule.ValidateStruct(c); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// TestErrors 错误字典以 json 字段名为键.
func TestErrors(t *testing.T) {
	err := rule.ValidateStruct(signup{Username: "", Password: "x"})

	msgs := rule.Errors(err)
	if msgs == nil {
		t.Fatalf("Expected validation errors, got %v", err)
	}

	if _, ok := msgs["username"]; !ok {
		t.Errorf("Expected key username, got %v", msgs)
	}

	if !strings.Contains(msgs["password"], "at least 8") {
		t.Errorf("Unexpected password message %q", msgs["password"])
	}

	if !strings.Contains(msgs.Error(), "username is required") {
		t.Errorf("Unexpected joined message %q", msgs.Error())
	}

	if rule.Errors(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

// TestValidateVar 测试 ValidateVar 对变量的验证.
func TestValidateVar(t *testing.T) {
	if err := rule.ValidateVar("test@example.com", "required,email"); err != nil {
		t.Errorf("Expected no error for valid email, got %v", err)
	}

	if err := rule.ValidateVar("invalid-email", "required,email"); err == nil {
		t.Error("Expected error for invalid email, got nil")
	}

	if err := rule.ValidateVar(150, "min=1,max=100"); err == nil {
		t.Error("Expected error for out of range limit, got nil")
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	})
	if err != nil {
		t.Fatalf("Failed to register validation: %v", err)
	}

	if err := rule.ValidateVar("test", "even_length"); err != nil {
		t.Errorf("Expected no error for even length string, got %v", err)
	}

	if err := rule.ValidateVar("test1", "even_length"); err == nil {
		t.Error("Expected error for odd length string, got nil")
	}
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("page_limit", "min=1,max=100")

	if err := rule.ValidateVar(50, "page_limit"); err != nil {
		t.Errorf("Expected no error for valid limit, got %v", err)
	}

	if err := rule.ValidateVar(0, "page_limit"); err == nil {
		t.Error("Expected error for invalid limit, got nil")
	}
}
