package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeDataIntegrity,
				Message: "malformed label",
			},
			wantMessage: "[DATA_INTEGRITY] malformed label",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeParsing,
				Message: "failed to read plants.csv",
				Cause:   fmt.Errorf("wrong number of fields"),
			},
			wantMessage: "[PARSING] failed to read plants.csv: wrong number of fields",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type: ErrTypeValidation,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("failed to save workbook", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("export: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeDataIntegrity, Message: "bad label"}
	err.WithContext("label", "1203").WithContext("row", 7)

	assert.Equal(t, "1203", err.Context["label"])
	assert.Equal(t, 7, err.Context["row"])
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"parsing", NewParsingError("bad csv", nil), ErrTypeParsing, "bad csv"},
		{"storage", NewStorageError("no space", nil), ErrTypeStorage, "no space"},
		{"validation", NewAppValidationError("bad delimiter"), ErrTypeValidation, "bad delimiter"},
		{"not found", NewNotFoundError("input directory"), ErrTypeNotFound, "input directory not found"},
		{"config", NewConfigError("bad yaml", nil), ErrTypeConfig, "bad yaml"},
		{"data integrity", NewDataIntegrityError("label 12 has no delimiter"), ErrTypeDataIntegrity, "label 12 has no delimiter"},
		{"empty dataset", NewEmptyDatasetError("aggregation"), ErrTypeEmptyDataset, "aggregation produced no measurable rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("reshape: %w", NewDataIntegrityError("bad label"))

	assert.True(t, IsType(err, ErrTypeDataIntegrity))
	assert.False(t, IsType(err, ErrTypeParsing))
	assert.False(t, IsType(errors.New("plain"), ErrTypeParsing))
	assert.False(t, IsType(nil, ErrTypeParsing))
}
