package keytrans

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/cachegrid/query/internal/errors"
)

func TestHandler_RoundTrip(t *testing.T) {
	h := NewHandler()
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	tests := []struct {
		name string
		key  interface{}
	}{
		{"string", "movie-42"},
		{"string with separator", "region:eu:west"},
		{"empty string", ""},
		{"int", 42},
		{"negative int", -7},
		{"int32", int32(-2147483648)},
		{"int64", int64(9007199254740993)},
		{"uint64", uint64(18446744073709551615)},
		{"bool", true},
		{"float64", 3.5},
		{"bytes", []byte{0x00, 0xff, 0x7a}},
		{"empty bytes", []byte{}},
		{"uuid", id},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := h.KeyToString(tt.key)
			if err != nil {
				t.Fatalf("KeyToString(%v) failed: %v", tt.key, err)
			}

			back, err := h.StringToKey(s)
			if err != nil {
				t.Fatalf("StringToKey(%q) failed: %v", s, err)
			}
			if !reflect.DeepEqual(back, tt.key) {
				t.Errorf("round trip changed key: got %v (%T), want %v (%T)", back, back, tt.key, tt.key)
			}
		})
	}
}

func TestHandler_EmptyStringKeyRoundTrip(t *testing.T) {
	// "" encodes to "S:", whose payload is empty but whose tag is intact.
	h := NewHandler()

	s, err := h.KeyToString("")
	if err != nil {
		t.Fatalf("KeyToString failed: %v", err)
	}
	if s != "S:" {
		t.Errorf("expected identifier 'S:', got %q", s)
	}

	back, err := h.StringToKey(s)
	if err != nil {
		t.Fatalf("StringToKey failed: %v", err)
	}
	if back != "" {
		t.Errorf("expected empty string key, got %v", back)
	}
}

func TestHandler_UnregisteredKeyType(t *testing.T) {
	h := NewHandler()

	type customKey struct{ ID int }
	_, err := h.KeyToString(customKey{ID: 1})
	if err == nil {
		t.Fatal("expected error for unregistered key type")
	}
	if !stderrors.Is(err, errors.ErrTransformerNotFound) {
		t.Errorf("expected ErrTransformerNotFound, got %v", err)
	}
}

func TestHandler_NilKey(t *testing.T) {
	h := NewHandler()

	_, err := h.KeyToString(nil)
	if err == nil {
		t.Fatal("expected error for nil key")
	}
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHandler_MalformedIdentifiers(t *testing.T) {
	h := NewHandler()

	tests := []struct {
		name       string
		identifier string
		wantErr    error
	}{
		{"no separator", "plainstring", errors.ErrInvalidInput},
		{"empty", "", errors.ErrInvalidInput},
		{"leading separator", ":payload", errors.ErrInvalidInput},
		{"unknown tag", "X:payload", errors.ErrTransformerNotFound},
		{"bad int payload", "I:not-a-number", nil}, // wrapped strconv error
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.StringToKey(tt.identifier)
			if err == nil {
				t.Fatalf("expected error for identifier %q", tt.identifier)
			}
			if tt.wantErr != nil && !stderrors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

type pairKey struct {
	Region string
	ID     int
}

type pairTransformer struct{}

func (pairTransformer) ToString(key interface{}) (string, error) {
	k := key.(pairKey)
	return fmt.Sprintf("%s/%d", k.Region, k.ID), nil
}

func (pairTransformer) FromString(payload string) (interface{}, error) {
	idx := strings.LastIndex(payload, "/")
	if idx < 0 {
		return nil, fmt.Errorf("malformed pair payload %q", payload)
	}
	var id int
	if _, err := fmt.Sscanf(payload[idx+1:], "%d", &id); err != nil {
		return nil, err
	}
	return pairKey{Region: payload[:idx], ID: id}, nil
}

func TestHandler_CustomRegistration(t *testing.T) {
	h := NewHandler()

	if err := h.Register("PAIR", pairKey{}, pairTransformer{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	key := pairKey{Region: "eu-west", ID: 9}
	s, err := h.KeyToString(key)
	if err != nil {
		t.Fatalf("KeyToString failed: %v", err)
	}
	if s != "PAIR:eu-west/9" {
		t.Errorf("unexpected identifier %q", s)
	}

	back, err := h.StringToKey(s)
	if err != nil {
		t.Fatalf("StringToKey failed: %v", err)
	}
	if back != key {
		t.Errorf("round trip changed key: got %v, want %v", back, key)
	}
}

func TestHandler_RegisterValidation(t *testing.T) {
	h := NewHandler()

	tests := []struct {
		name      string
		tag       string
		prototype interface{}
		trans     Transformer
	}{
		{"empty tag", "", pairKey{}, pairTransformer{}},
		{"tag with separator", "PA:IR", pairKey{}, pairTransformer{}},
		{"nil prototype", "PAIR", nil, pairTransformer{}},
		{"nil transformer", "PAIR", pairKey{}, nil},
		{"duplicate tag", "S", pairKey{}, pairTransformer{}},
		{"duplicate type", "STR2", "", pairTransformer{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Register(tt.tag, tt.prototype, tt.trans)
			if err == nil {
				t.Fatal("expected registration to fail")
			}
			if !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
