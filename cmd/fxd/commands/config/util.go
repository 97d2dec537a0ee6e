package config

import "strconv"

func itoa(n int) string { return strconv.Itoa(n) }

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
