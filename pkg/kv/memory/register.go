package memory

import (
	"fmt"
	"strconv"

	"github.com/contentgen/contentgen-backend/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		return New(cfg.JanitorInterval), nil
	})
}

func parseInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value is not an integer: %w", err)
	}
	return n, nil
}

func formatInt(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}
