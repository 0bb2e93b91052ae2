// Package errcode 定义服务之间以及对客户端暴露的错误码。
package errcode

import (
	"encoding/json"
	"io"
	"net/http"
)

type Code string

const (
	CustomerNotFound   Code = "CUSTOMER_NOT_FOUND"
	ProductNotFound    Code = "PRODUCT_NOT_FOUND"
	CategoryNotFound   Code = "CATEGORY_NOT_FOUND"
	InvalidQuantity    Code = "INVALID_QUANTITY"
	InsufficientStock  Code = "INSUFFICIENT_STOCK"
	StockConflict      Code = "STOCK_CONFLICT"
	OrderNotFound      Code = "ORDER_NOT_FOUND"
	DuplicateReference Code = "DUPLICATE_REFERENCE"
	ValidationFailed   Code = "VALIDATION_FAILED"
	BadRequest         Code = "BAD_REQUEST"
	Internal           Code = "INTERNAL"
)

// Body 是所有错误响应的统一 JSON 结构。
type Body struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Write 写出一个错误响应。
func Write(w http.ResponseWriter, status int, code Code, message string) {
	writeBody(w, status, Body{Code: code, Message: message})
}

// WriteFields 写出字段校验失败的响应，fields 为 字段名 -> 错误信息。
func WriteFields(w http.ResponseWriter, fields map[string]string) {
	writeBody(w, http.StatusBadRequest, Body{Code: ValidationFailed, Message: "request validation failed", Fields: fields})
}

// Decode 解析下游服务返回的错误响应体。
func Decode(r io.Reader) (Body, error) {
	var b Body
	err := json.NewDecoder(r).Decode(&b)
	return b, err
}

func writeBody(w http.ResponseWriter, status int, b Body) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(b)
}
