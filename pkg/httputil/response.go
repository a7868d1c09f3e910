// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorDetail is a single entry in the API error envelope.
type ErrorDetail struct {
	Detail string `json:"detail"`
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

// ErrorResponse is the error envelope every non-success response carries.
type ErrorResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteErrors(w, status, []ErrorDetail{{
		Detail: detail,
		Status: fmt.Sprintf("%d", status),
	}})
}

// WriteErrors writes the error envelope with explicit error entries, used
// when passing upstream errors through.
func WriteErrors(w http.ResponseWriter, status int, details []ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Errors: details})
}

// WriteBadRequest writes a validation error (400).
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, detail)
}

// WriteNotFound writes a not found error (404).
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

// WriteInternalError writes an internal server error (500).
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err.Error())
}

// WriteUnauthorized writes an unauthorized error (401).
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnauthorized, detail)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// PaginationMeta carries list metadata.
type PaginationMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PaginatedResponse is the standard list response shape.
type PaginatedResponse struct {
	Meta PaginationMeta `json:"meta"`
	Data interface{}    `json:"data"`
}

// WritePaginated writes a list response with pagination metadata.
func WritePaginated(w http.ResponseWriter, count, limit, offset int, data interface{}) error {
	return WriteJSON(w, http.StatusOK, PaginatedResponse{
		Meta: PaginationMeta{Count: count, Limit: limit, Offset: offset},
		Data: data,
	})
}
