// Package cmdline parses the boot command line passed to the kernel.
package cmdline

import (
	"strconv"
	"strings"
)

// Args holds the key-value pairs of a boot command line. Flags without a
// value map to themselves.
type Args map[string]string

// Parse splits cmdLine into whitespace-separated key=value pairs. Pairs with
// more than one '=' are ignored. If a key appears more than once the last
// value wins.
func Parse(cmdLine string) Args {
	args := make(Args)
	for _, pair := range strings.Fields(cmdLine) {
		kv := strings.Split(pair, "=")
		switch len(kv) {
		case 2: // foo=bar
			args[kv[0]] = kv[1]
		case 1: // nofoo
			args[kv[0]] = kv[0]
		}
	}

	return args
}

// String returns the value for key or def if key is not present.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Bool returns true for "on", "yes", "true" and "1", false for "off",
// "no", "false" and "0" and def for anything else.
func (a Args) Bool(key string, def bool) bool {
	switch strings.ToLower(a[key]) {
	case "on", "yes", "true", "1":
		return true
	case "off", "no", "false", "0":
		return false
	default:
		return def
	}
}

// Hex8 parses the value for key as a hex byte with an optional 0x prefix.
// It returns def if key is missing or its value is malformed.
func (a Args) Hex8(key string, def uint8) uint8 {
	v, ok := a[key]
	if !ok {
		return def
	}

	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	val, err := strconv.ParseUint(v, 16, 8)
	if err != nil {
		return def
	}
	return uint8(val)
}

// Float returns the value for key as a positive float or def if key is
// missing, malformed or not positive. Fractions such as 65536/1193182 are
// accepted.
func (a Args) Float(key string, def float64) float64 {
	v, ok := a[key]
	if !ok {
		return def
	}

	num, den, isFraction := strings.Cut(v, "/")
	val, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return def
	}

	if isFraction {
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return def
		}
		val /= d
	}

	if !(val > 0) {
		return def
	}
	return val
}
