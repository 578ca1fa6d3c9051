package nl2sql

import (
	"errors"
	"fmt"
	"strings"
)

type Variant string

const (
	VariantTurbo Variant = "qwen_turbo"
	VariantCoder Variant = "qwen_coder"
	VariantLocal Variant = "local_qwen"
)

var ErrUnknownVariant = errors.New("unknown generator variant")

func Variants() []Variant {
	return []Variant{VariantTurbo, VariantCoder, VariantLocal}
}

func ParseVariant(name string) (Variant, error) {
	variant := Variant(strings.ToLower(strings.TrimSpace(name)))
	if !variant.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return variant, nil
}

func (v Variant) Valid() bool {
	switch v {
	case VariantTurbo, VariantCoder, VariantLocal:
		return true
	default:
		return false
	}
}

func (v Variant) String() string {
	return string(v)
}
