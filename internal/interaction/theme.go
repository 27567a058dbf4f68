// SPDX-License-Identifier: MPL-2.0

package interaction

import "fmt"

// Theme holds the reply colours as 24-bit RGB values.
type Theme struct {
	Error   int `json:"error"`
	Success int `json:"success"`
	Warn    int `json:"warn"`
	Standby int `json:"standby"`
	Neutral int `json:"neutral"`
}

// DefaultTheme returns the stock reply colours.
func DefaultTheme() Theme {
	return Theme{
		Error:   15747399,
		Success: 6549575,
		Warn:    16763481,
		Standby: 10395294,
		Neutral: 3259125,
	}
}

// Hex formats a 24-bit colour as "#RRGGBB".
func Hex(c int) string {
	return fmt.Sprintf("#%06X", c&0xFFFFFF)
}
