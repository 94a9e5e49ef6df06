//go:build !linux

package sysinfo

// Memory is unavailable off Linux; callers skip the log line.
func Memory() (rssMB, vszMB float64, ok bool) {
	return 0, 0, false
}
