//go:build windows

package storage

import (
	"os"
	"path/filepath"
)

func platformConfigDefault() string {
	return filepath.Join(os.Getenv("APPDATA"), "fairbayes", "config")
}

func platformDataDefault() string {
	return filepath.Join(os.Getenv("APPDATA"), "fairbayes", "data")
}
