package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// ErrEmptyBody 请求体为空
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON 读取并解析限长的JSON请求体
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[http] failed to encode response status=%d: %v", status, err)
	}
}

// RespondError 发送错误响应，detail 为空时省略
func RespondError(w http.ResponseWriter, status int, message string, detail ...string) {
	body := map[string]string{"error": message}
	if len(detail) > 0 && detail[0] != "" {
		body["detail"] = detail[0]
	}
	RespondJSON(w, status, body)
}
