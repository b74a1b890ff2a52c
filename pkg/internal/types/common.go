package types

// ErrorResponse 统一错误体.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RootResponse 服务存活信息.
type RootResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    RootData `json:"data"`
}

// RootData 服务描述.
type RootData struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// HealthResponse 依赖健康状态.
type HealthResponse struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}
