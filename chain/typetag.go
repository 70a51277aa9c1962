package chain

import (
	"errors"
	"fmt"
	"strings"
)

// TypeTag is a parsed Move struct tag such as
// 0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>.
//
// TypeParams holds the unparsed generic parameters, split at top-level commas.
type TypeTag struct {
	Address    string
	Module     string
	Name       string
	TypeParams []string
}

// ErrBadTypeTag is returned by ParseTypeTag for strings that are not valid
// Move struct tags
var ErrBadTypeTag = errors.New("malformed type tag")

// ParseTypeTag parses a Move struct tag of the form
// address::module::Name or address::module::Name<params>.
//
// The address is normalized (see NormalizeAddress). Nested generic parameters
// are kept as strings; parse them with another ParseTypeTag call if needed.
func ParseTypeTag(s string) (TypeTag, error) {
	base := s
	var params []string

	if i := strings.IndexByte(s, '<'); i >= 0 {
		if !strings.HasSuffix(s, ">") {
			return TypeTag{}, fmt.Errorf("%w: %q", ErrBadTypeTag, s)
		}
		base = s[:i]
		var err error
		params, err = splitTypeParams(s[i+1 : len(s)-1])
		if err != nil {
			return TypeTag{}, fmt.Errorf("%w: %q", ErrBadTypeTag, s)
		}
	}

	parts := strings.Split(base, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TypeTag{}, fmt.Errorf("%w: %q", ErrBadTypeTag, s)
	}
	addr, err := NormalizeAddress(parts[0])
	if err != nil {
		return TypeTag{}, fmt.Errorf("%w: %q", ErrBadTypeTag, s)
	}

	return TypeTag{
		Address:    addr,
		Module:     parts[1],
		Name:       parts[2],
		TypeParams: params,
	}, nil
}

// splitTypeParams splits a generic parameter list at top-level commas,
// respecting nesting: "A<B, C>, D" becomes ["A<B, C>", "D"].
func splitTypeParams(s string) ([]string, error) {
	var params []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, ErrBadTypeTag
			}
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, ErrBadTypeTag
	}
	last := strings.TrimSpace(s[start:])
	if last == "" {
		return nil, ErrBadTypeTag
	}
	params = append(params, last)
	for _, p := range params {
		if p == "" {
			return nil, ErrBadTypeTag
		}
	}
	return params, nil
}

// Is reports whether the tag names the given struct, ignoring generic
// parameters. The address is compared in normalized form.
func (t TypeTag) Is(address, module, name string) bool {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false
	}
	return t.Address == addr && t.Module == module && t.Name == name
}

func (t TypeTag) String() string {
	s := t.Address + "::" + t.Module + "::" + t.Name
	if len(t.TypeParams) > 0 {
		s += "<" + strings.Join(t.TypeParams, ", ") + ">"
	}
	return s
}
