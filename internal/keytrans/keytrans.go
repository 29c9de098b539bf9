// Package keytrans maps cache keys to the string document identifiers used
// inside the search index and back. Every key type needs a registered
// transformer; identifiers carry a type tag so the original key type is
// restored exactly on the way back.
package keytrans

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cachegrid/query/internal/errors"
)

// Identifier format: "<tag>:<payload>". The tag picks the transformer, the
// payload is transformer-specific.
const tagSeparator = ":"

// Transformer encodes keys of one type to an index-safe payload and back.
// FromString(ToString(k)) must return a value equal to k, with the same
// dynamic type.
type Transformer interface {
	ToString(key interface{}) (string, error)
	FromString(payload string) (interface{}, error)
}

type registration struct {
	tag         string
	transformer Transformer
}

// Handler is the key transformation registry. It implements
// services.KeyTransformer. The zero value is not usable; use NewHandler,
// which installs transformers for the common key types.
type Handler struct {
	mu     sync.RWMutex
	byType map[reflect.Type]registration
	byTag  map[string]registration
}

// NewHandler creates a Handler with transformers registered for string, int,
// int32, int64, uint64, bool, float64, []byte and uuid.UUID keys.
func NewHandler() *Handler {
	h := &Handler{
		byType: make(map[reflect.Type]registration),
		byTag:  make(map[string]registration),
	}
	mustRegister := func(tag string, prototype interface{}, t Transformer) {
		if err := h.Register(tag, prototype, t); err != nil {
			panic(err) // builtin registrations cannot collide
		}
	}

	mustRegister("S", "", funcTransformer{
		enc: func(key interface{}) (string, error) { return key.(string), nil },
		dec: func(payload string) (interface{}, error) { return payload, nil },
	})
	mustRegister("I", int(0), funcTransformer{
		enc: func(key interface{}) (string, error) { return strconv.Itoa(key.(int)), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.Atoi(payload)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("I32", int32(0), funcTransformer{
		enc: func(key interface{}) (string, error) { return strconv.FormatInt(int64(key.(int32)), 10), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.ParseInt(payload, 10, 32)
			if err != nil {
				return nil, err
			}
			return int32(v), nil
		},
	})
	mustRegister("I64", int64(0), funcTransformer{
		enc: func(key interface{}) (string, error) { return strconv.FormatInt(key.(int64), 10), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.ParseInt(payload, 10, 64)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("U64", uint64(0), funcTransformer{
		enc: func(key interface{}) (string, error) { return strconv.FormatUint(key.(uint64), 10), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.ParseUint(payload, 10, 64)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("B", false, funcTransformer{
		enc: func(key interface{}) (string, error) { return strconv.FormatBool(key.(bool)), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.ParseBool(payload)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("F64", float64(0), funcTransformer{
		enc: func(key interface{}) (string, error) {
			return strconv.FormatFloat(key.(float64), 'g', -1, 64), nil
		},
		dec: func(payload string) (interface{}, error) {
			v, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("BYTES", []byte{}, funcTransformer{
		enc: func(key interface{}) (string, error) {
			return base64.RawURLEncoding.EncodeToString(key.([]byte)), nil
		},
		dec: func(payload string) (interface{}, error) {
			v, err := base64.RawURLEncoding.DecodeString(payload)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})
	mustRegister("UUID", uuid.UUID{}, funcTransformer{
		enc: func(key interface{}) (string, error) { return key.(uuid.UUID).String(), nil },
		dec: func(payload string) (interface{}, error) {
			v, err := uuid.Parse(payload)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	})

	return h
}

// Register installs a transformer for the dynamic type of prototype under the
// given identifier tag. Tags must not contain the separator. Registering a
// tag or type twice is an error.
func (h *Handler) Register(tag string, prototype interface{}, t Transformer) error {
	if tag == "" || strings.Contains(tag, tagSeparator) {
		return errors.NewValidationError("tag", fmt.Sprintf("tag %q must be non-empty and must not contain %q", tag, tagSeparator))
	}
	if prototype == nil {
		return errors.NewValidationError("prototype", "prototype key cannot be nil")
	}
	if t == nil {
		return errors.NewValidationError("transformer", "transformer cannot be nil")
	}

	rt := reflect.TypeOf(prototype)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.byType[rt]; exists {
		return errors.NewValidationError("prototype", fmt.Sprintf("key type %s already has a transformer", rt))
	}
	if _, exists := h.byTag[tag]; exists {
		return errors.NewValidationError("tag", fmt.Sprintf("identifier tag %q is already registered", tag))
	}
	reg := registration{tag: tag, transformer: t}
	h.byType[rt] = reg
	h.byTag[tag] = reg
	return nil
}

// KeyToString converts a cache key to its index document identifier.
func (h *Handler) KeyToString(key interface{}) (string, error) {
	if key == nil {
		return "", errors.NewValidationError("key", "cache key cannot be nil")
	}
	rt := reflect.TypeOf(key)

	h.mu.RLock()
	reg, ok := h.byType[rt]
	h.mu.RUnlock()
	if !ok {
		return "", errors.NewTransformerNotFoundError(rt.String())
	}

	payload, err := reg.transformer.ToString(key)
	if err != nil {
		return "", fmt.Errorf("failed to transform key of type %s: %w", rt, err)
	}
	return reg.tag + tagSeparator + payload, nil
}

// StringToKey converts an index document identifier back to the original
// cache key.
func (h *Handler) StringToKey(s string) (interface{}, error) {
	idx := strings.Index(s, tagSeparator)
	if idx <= 0 {
		return nil, errors.NewValidationError("identifier", fmt.Sprintf("malformed document identifier %q", s))
	}
	tag, payload := s[:idx], s[idx+1:]

	h.mu.RLock()
	reg, ok := h.byTag[tag]
	h.mu.RUnlock()
	if !ok {
		return nil, errors.NewTransformerTagNotFoundError(tag)
	}

	key, err := reg.transformer.FromString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document identifier %q: %w", s, err)
	}
	return key, nil
}

// funcTransformer adapts a pair of functions to the Transformer interface.
type funcTransformer struct {
	enc func(key interface{}) (string, error)
	dec func(payload string) (interface{}, error)
}

func (t funcTransformer) ToString(key interface{}) (string, error) { return t.enc(key) }

func (t funcTransformer) FromString(payload string) (interface{}, error) { return t.dec(payload) }
