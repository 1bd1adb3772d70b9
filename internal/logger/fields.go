package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldOwnerKind is the key for the kind of entity a pipeline runs for.
	FieldOwnerKind = "owner_kind"
	// FieldOwnerID is the key for the identifier of that entity.
	FieldOwnerID = "owner_id"
	// FieldStage is the key for the pipeline stage name.
	FieldStage = "stage"
	// FieldJobID is the key for a work queue job identifier.
	FieldJobID = "job_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// OwnerFields describes the entity a pipeline or job is working on.
func OwnerFields(kind string, id int64) []zap.Field {
	fields := StringFields(StringField{Key: FieldOwnerKind, Value: kind})
	if id > 0 {
		fields = append(fields, zap.Int64(FieldOwnerID, id))
	}
	return fields
}

// WithOwner attaches owner fields to the provided logger.
func WithOwner(logger *zap.Logger, kind string, id int64) *zap.Logger {
	return WithFields(logger, OwnerFields(kind, id)...)
}
