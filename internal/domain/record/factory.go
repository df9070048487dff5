package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Factory создает типизированное содержимое записей
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// CreatePayload возвращает пустое содержимое для типа
func (f *Factory) CreatePayload(kind Kind) (Payload, error) {
	switch kind {
	case KindTrip:
		return &Trip{}, nil
	case KindExpense:
		return &Expense{}, nil
	case KindVehicle:
		return &Vehicle{}, nil
	case KindWorkSchedule:
		return &WorkSchedule{}, nil
	default:
		return nil, fmt.Errorf("unsupported record kind: %s", kind)
	}
}

// ParsePayload разбирает JSON без проверки бизнес-правил
func (f *Factory) ParsePayload(kind Kind, data []byte) (Payload, error) {
	payload, err := f.CreatePayload(kind)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload for kind %s: %w", kind, err)
	}

	return payload, nil
}

// ValidatePayload разбирает и валидирует содержимое
func (f *Factory) ValidatePayload(kind Kind, data []byte) error {
	payload, err := f.ParsePayload(kind, data)
	if err != nil {
		return err
	}

	return payload.Validate()
}

// Marshal валидирует и сериализует содержимое
func (f *Factory) Marshal(p Payload) (json.RawMessage, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return data, nil
}

// Checksum - SHA-256 от типа и содержимого
func Checksum(kind Kind, payload []byte) string {
	sum := sha256.Sum256(append([]byte(kind.String()+":"), payload...))
	return hex.EncodeToString(sum[:])
}
