package models

import "time"

type Alert struct {
	Type    string            `json:"type"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Time    time.Time         `json:"time"`
}

const (
	AlertTypeInfo    = "info"
	AlertTypeWarning = "warning"
	AlertTypeError   = "error"
)
