package gst

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownState is returned when a state cannot be resolved to a GST state code.
var ErrUnknownState = errors.New("unknown state")

// StateCode is the canonical two-digit GST state code (e.g. "27" for Maharashtra).
// The zero value means the state is not known.
type StateCode string

type stateInfo struct {
	code    StateCode
	abbrev  string
	name    string
	aliases []string
}

var states = []stateInfo{
	{"01", "JK", "Jammu and Kashmir", nil},
	{"02", "HP", "Himachal Pradesh", nil},
	{"03", "PB", "Punjab", nil},
	{"04", "CH", "Chandigarh", nil},
	{"05", "UK", "Uttarakhand", []string{"UT", "Uttaranchal"}},
	{"06", "HR", "Haryana", nil},
	{"07", "DL", "Delhi", []string{"New Delhi", "NCT of Delhi"}},
	{"08", "RJ", "Rajasthan", nil},
	{"09", "UP", "Uttar Pradesh", nil},
	{"10", "BR", "Bihar", nil},
	{"11", "SK", "Sikkim", nil},
	{"12", "AR", "Arunachal Pradesh", nil},
	{"13", "NL", "Nagaland", nil},
	{"14", "MN", "Manipur", nil},
	{"15", "MZ", "Mizoram", nil},
	{"16", "TR", "Tripura", nil},
	{"17", "ML", "Meghalaya", nil},
	{"18", "AS", "Assam", nil},
	{"19", "WB", "West Bengal", nil},
	{"20", "JH", "Jharkhand", nil},
	{"21", "OD", "Odisha", []string{"OR", "Orissa"}},
	{"22", "CG", "Chhattisgarh", []string{"CT"}},
	{"23", "MP", "Madhya Pradesh", nil},
	{"24", "GJ", "Gujarat", nil},
	{"26", "DH", "Dadra and Nagar Haveli and Daman and Diu", []string{"DN", "DD"}},
	{"27", "MH", "Maharashtra", nil},
	{"29", "KA", "Karnataka", nil},
	{"30", "GA", "Goa", nil},
	{"31", "LD", "Lakshadweep", nil},
	{"32", "KL", "Kerala", nil},
	{"33", "TN", "Tamil Nadu", nil},
	{"34", "PY", "Puducherry", []string{"Pondicherry"}},
	{"35", "AN", "Andaman and Nicobar Islands", nil},
	{"36", "TS", "Telangana", []string{"TG"}},
	{"37", "AD", "Andhra Pradesh", []string{"AP"}},
	{"38", "LA", "Ladakh", nil},
	{"97", "OT", "Other Territory", nil},
}

var (
	stateIndex = buildStateIndex()
	stateNames = buildStateNames()
)

func buildStateIndex() map[string]StateCode {
	idx := make(map[string]StateCode, len(states)*4)
	for _, s := range states {
		idx[string(s.code)] = s.code
		idx[normalizeStateKey(s.abbrev)] = s.code
		idx[normalizeStateKey(s.name)] = s.code
		for _, alias := range s.aliases {
			idx[normalizeStateKey(alias)] = s.code
		}
	}
	return idx
}

func buildStateNames() map[StateCode]string {
	names := make(map[StateCode]string, len(states))
	for _, s := range states {
		names[s.code] = s.name
	}
	return names
}

func normalizeStateKey(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// ParseState resolves a numeric GST code, a two-letter abbreviation or a state name
// to its canonical StateCode. Single-digit codes are accepted ("7" resolves to "07").
// An empty input yields the zero StateCode without error.
func ParseState(value string) (StateCode, error) {
	key := normalizeStateKey(value)
	if key == "" {
		return "", nil
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		key = "0" + key
	}
	if code, ok := stateIndex[key]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%q: %w", value, ErrUnknownState)
}

// MustParseState is ParseState for static inputs; it panics on unknown states.
func MustParseState(value string) StateCode {
	code, err := ParseState(value)
	if err != nil {
		panic(err)
	}
	return code
}

// Known reports whether the code is set.
func (c StateCode) Known() bool { return c != "" }

// Name returns the human readable state name, or an empty string for unknown codes.
func (c StateCode) Name() string { return stateNames[c] }

func (c StateCode) String() string { return string(c) }

// MarshalText implements encoding.TextMarshaler.
func (c StateCode) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText canonicalises codes, abbreviations and names on decode.
func (c *StateCode) UnmarshalText(text []byte) error {
	code, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// Jurisdiction pairs the supplier and buyer states of a transaction.
type Jurisdiction struct {
	Supplier StateCode `json:"supplierState"`
	Buyer    StateCode `json:"buyerState"`
}

// InterState reports whether the supply crosses state lines. When either side is
// unknown the supply is treated as intra-state.
func (j Jurisdiction) InterState() bool {
	if !j.Supplier.Known() || !j.Buyer.Known() {
		return false
	}
	return j.Supplier != j.Buyer
}
